package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Session struct {
		DevToolsURL           string `yaml:"devtoolsUrl"`
		Target                string `yaml:"target"`
		Concurrency           int    `yaml:"concurrency"`
		RegistrationTimeoutMS int    `yaml:"registrationTimeoutMs"`
	} `yaml:"session"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "netstub.sqlite3"
	c.Sqlite.Prefix = "netstub_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	c.Log.File = "netstub.log"
	c.Session.DevToolsURL = "http://127.0.0.1:9222"
	c.Session.Concurrency = 32
	c.Session.RegistrationTimeoutMS = 5000
	return c
}

// Load 从 yaml 文件加载配置，缺失字段保留默认值
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return c, nil
}
