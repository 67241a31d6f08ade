package roster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tabg-cli/internal/logger"
)

var (
	// ErrUnknownPlayer 表示名册里没有该玩家。
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrEmptyID 表示玩家标识为空。
	ErrEmptyID = errors.New("player id is empty")
)

// Store 是访客名册：按 epic user name 索引的 VisitorEntry，加上当前在线集合。
// 每次变更都整体重写 JSON 文件；锁只保护内存状态，不跨 I/O 持有。
//
// 离开策略：玩家离开后只从在线集合中移除，历史记录永久保留在文件里。
type Store struct {
	path string

	mu        sync.Mutex
	entries   map[string]VisitorEntry
	connected map[string]time.Time

	seq uint64

	saveMu    sync.Mutex
	lastSaved []byte
	savedSeq  uint64

	now func() time.Time
	log *logger.LogEntry
}

// NewStore 创建名册；path 为空时只保存在内存中。
func NewStore(path string) *Store {
	return &Store{
		path:      path,
		entries:   map[string]VisitorEntry{},
		connected: map[string]time.Time{},
		now:       time.Now,
		log:       logger.Named("roster"),
	}
}

// Path 返回持久化文件路径。
func (s *Store) Path() string {
	return s.path
}

// Load 从磁盘读取名册，文件不存在时视为空名册。
func (s *Store) Load() error {
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	entries, err := decode(data)
	if err != nil {
		return fmt.Errorf("parse roster %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.saveMu.Lock()
	s.lastSaved = data
	s.saveMu.Unlock()
	return nil
}

func decode(data []byte) (map[string]VisitorEntry, error) {
	entries := map[string]VisitorEntry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = map[string]VisitorEntry{}
	}
	return entries, nil
}

// Join 记录玩家加入：合并身份历史、刷新时间并标记在线。
func (s *Store) Join(id string, seen VisitorEntry) (VisitorEntry, error) {
	if strings.TrimSpace(id) == "" {
		return VisitorEntry{}, ErrEmptyID
	}
	now := s.now()
	s.mu.Lock()
	entry, known := s.entries[id]
	if !known {
		entry.PermissionLevel = seen.PermissionLevel
	}
	entry = entry.merge(seen, now)
	s.entries[id] = entry
	s.connected[id] = now
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return entry.clone(), s.save(snap)
}

// Leave 记录玩家离开：刷新 LastSeen 并移出在线集合，历史保留。
func (s *Store) Leave(id string) (VisitorEntry, error) {
	now := s.now()
	s.mu.Lock()
	_, online := s.connected[id]
	delete(s.connected, id)
	entry, known := s.entries[id]
	if !known {
		s.mu.Unlock()
		if online {
			return VisitorEntry{}, nil
		}
		return VisitorEntry{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	entry.LastSeen = now
	s.entries[id] = entry
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return entry.clone(), s.save(snap)
}

// SetLevel 修改权限等级并持久化。
func (s *Store) SetLevel(id string, level uint) error {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	entry.PermissionLevel = level
	s.entries[id] = entry
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.save(snap)
}

// PermissionLevel 返回玩家权限等级，未知玩家为 0。
func (s *Store) PermissionLevel(id string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id].PermissionLevel
}

// Get 返回一份记录副本。
func (s *Store) Get(id string) (VisitorEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return VisitorEntry{}, false
	}
	return entry.clone(), true
}

// IsConnected 报告玩家是否在线。
func (s *Store) IsConnected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.connected[id]
	return ok
}

// Connected 返回在线玩家，按加入时间排序。
func (s *Store) Connected() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Player, 0, len(s.connected))
	for id := range s.connected {
		out = append(out, toPlayer(id, s.entries[id], true))
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := s.connected[out[i].ID], s.connected[out[j].ID]
		if ti.Equal(tj) {
			return out[i].ID < out[j].ID
		}
		return ti.Before(tj)
	})
	return out
}

// All 返回全部记录，在线玩家在前，其余按最近出现时间倒序。
func (s *Store) All() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Player, 0, len(s.entries))
	for id, entry := range s.entries {
		_, online := s.connected[id]
		out = append(out, toPlayer(id, entry, online))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Connected != out[j].Connected {
			return out[i].Connected
		}
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len 返回名册记录数。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ResetConnected 清空在线集合，子进程退出时调用。
func (s *Store) ResetConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = map[string]time.Time{}
}

type snapshot struct {
	seq     uint64
	entries map[string]VisitorEntry
}

func (s *Store) snapshotLocked() snapshot {
	s.seq++
	out := make(map[string]VisitorEntry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry.clone()
	}
	return snapshot{seq: s.seq, entries: out}
}

// save 整体重写名册文件：先写临时文件再 rename。比已落盘版本旧的快照直接丢弃。
func (s *Store) save(snap snapshot) error {
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	data, err := json.MarshalIndent(snap.entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if snap.seq <= s.savedSeq {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.lastSaved = data
	s.savedSeq = snap.seq
	return nil
}

// reloadIfChanged 在文件被外部修改后重新加载，在线集合保持不变。
func (s *Store) reloadIfChanged() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	s.saveMu.Lock()
	same := bytes.Equal(data, s.lastSaved)
	s.saveMu.Unlock()
	if same {
		return false, nil
	}
	entries, err := decode(data)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.saveMu.Lock()
	s.lastSaved = data
	s.saveMu.Unlock()
	return true, nil
}
