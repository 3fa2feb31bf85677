package session

import (
	"sync"

	"github.com/google/uuid"

	"netstub/internal/logger"
	"netstub/pkg/domain"
)

// Manager 全局会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[domain.SessionID]*Session),
		log:      l,
	}
}

// Create 创建并登记新会话，id 为空时自动生成
func (m *Manager) Create(id domain.SessionID, cfg domain.SessionConfig) *Session {
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := New(id, cfg, m.log)
	m.sessions[id] = s
	m.log.Info("创建测试会话", "sessionID", string(id))
	return s
}

// Get 获取会话
func (m *Manager) Get(id domain.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 拆除并移除会话
func (m *Manager) Delete(id domain.SessionID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		_ = s.Close()
	}
	m.log.Info("销毁测试会话", "sessionID", string(id))
}

// List 返回所有活动会话
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// Shutdown 拆除全部会话
func (m *Manager) Shutdown() {
	for _, s := range m.List() {
		m.Delete(s.ID)
	}
}
