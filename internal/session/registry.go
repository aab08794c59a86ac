package session

import (
	"errors"
	"sync"
)

// ErrDuplicateConnection 表示连接 id 在未注销前被重复注册，属于不变量被破坏。
var ErrDuplicateConnection = errors.New("duplicate connection id")

// Session 绑定一条活跃连接的认证身份和已加入的房间。
type Session struct {
	ConnID   string
	UserID   uint
	Username string
	rooms    map[uint]struct{}
}

// Registry 维护连接到会话、房间到连接的双向索引。
// 房间成员的增删和广播目标解析互斥，保证广播过程中成员集合不被修改。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[uint]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[uint]map[string]struct{}),
	}
}

// Register 为新连接创建会话。调用方必须保证 connID 唯一。
func (r *Registry) Register(connID string, userID uint, username string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[connID]; ok {
		return nil, ErrDuplicateConnection
	}
	s := &Session{ConnID: connID, UserID: userID, Username: username, rooms: make(map[uint]struct{})}
	r.sessions[connID] = s
	return s, nil
}

// Get 返回连接对应的会话快照，不存在时返回 nil。
func (r *Registry) Get(connID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[connID]
}

// JoinRoom 把连接加入房间，重复加入是幂等的。
// 授权检查由调用方在加入前完成，这里只做登记。
func (r *Registry) JoinRoom(connID string, chatID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return
	}
	s.rooms[chatID] = struct{}{}
	set := r.rooms[chatID]
	if set == nil {
		set = make(map[string]struct{})
		r.rooms[chatID] = set
	}
	set[connID] = struct{}{}
}

// LeaveRoom 把连接移出房间，未加入时是空操作。
func (r *Registry) LeaveRoom(connID string, chatID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, chatID)
}

func (r *Registry) leaveLocked(connID string, chatID uint) {
	if s, ok := r.sessions[connID]; ok {
		delete(s.rooms, chatID)
	}
	if set, ok := r.rooms[chatID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.rooms, chatID)
		}
	}
}

// InRoom 判断连接当前是否在房间内。
func (r *Registry) InRoom(connID string, chatID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	_, in := s.rooms[chatID]
	return in
}

// ResolveTargets 返回房间内全部连接 id 的快照，供网关做扇出广播。
func (r *Registry) ResolveTargets(chatID uint) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[chatID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Teardown 在一次加锁内移除会话及其全部房间成员关系，
// 返回该连接曾加入的房间列表。之后任何 ResolveTargets 都不会再包含它。
func (r *Registry) Teardown(connID string) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil
	}
	joined := make([]uint, 0, len(s.rooms))
	for chatID := range s.rooms {
		joined = append(joined, chatID)
		if set, ok := r.rooms[chatID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.rooms, chatID)
			}
		}
	}
	delete(r.sessions, connID)
	return joined
}

// Online 返回房间当前在线连接数，供 REST 接口复用。
func (r *Registry) Online(chatID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[chatID])
}
