package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoSessions 表示目录中还没有任何运行记录。
var ErrNoSessions = errors.New("no sessions found")

// Record 描述一次服务器运行，ID 即该次运行的管道标识。
type Record struct {
	ID         string     `json:"id"`
	ServerPath string     `json:"serverPath"`
	Args       []string   `json:"args,omitempty"`
	PipeMode   string     `json:"pipeMode"`
	PID        int        `json:"pid,omitempty"`
	Started    time.Time  `json:"started"`
	Ended      *time.Time `json:"ended,omitempty"`
	ExitState  string     `json:"exitState,omitempty"`
	ExitCode   int        `json:"exitCode"`
	Players    []string   `json:"players,omitempty"`
	Updated    time.Time  `json:"updated"`
}

// AddPlayer 记录本次运行中出现过的玩家，重复 id 忽略。
func (r *Record) AddPlayer(id string) bool {
	for _, p := range r.Players {
		if p == id {
			return false
		}
	}
	r.Players = append(r.Players, id)
	return true
}

// Summary 返回一行运行结局，例如 "exited with error (code 1), 2 players"。
// 没有退出信息说明上次运行时本程序自身异常退出。
func (r Record) Summary() string {
	if r.Ended == nil {
		return "ended without an exit record"
	}
	out := fmt.Sprintf("%s (code %d)", r.ExitState, r.ExitCode)
	switch n := len(r.Players); n {
	case 0:
	case 1:
		out += ", 1 player"
	default:
		out += fmt.Sprintf(", %d players", n)
	}
	return out
}

// Finish 写入退出信息。
func (r *Record) Finish(state string, code int, at time.Time) {
	r.Ended = &at
	r.ExitState = state
	r.ExitCode = code
}

// Store 把每次运行保存为 <dir>/<id>.json。
type Store struct {
	Dir string
}

// NewStore 创建记录目录对应的 Store。
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) ensureDir() error {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return errors.New("session store dir is empty")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// Save 原子写入记录并刷新 Updated。
func (s *Store) Save(rec *Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("session record requires an id")
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	rec.Updated = time.Now()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, rec.ID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(rec.ID)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Load 读取指定 id 的记录。
func (s *Store) Load(id string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec, nil
}

// Last 返回最近更新的记录。
func (s *Store) Last() (Record, error) {
	records, err := s.List()
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrNoSessions
	}
	return records[0], nil
}

// ListIDs 返回目录中所有记录 id，目录不存在时为空。
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, trimExt(e.Name()))
	}
	return ids, nil
}

// List 返回所有可解析的记录，最近更新的在前。
func (s *Store) List() ([]Record, error) {
	ids, err := s.ListIDs()
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, id := range ids {
		rec, err := s.Load(id)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Updated.After(records[j].Updated)
	})
	return records, nil
}

// Prune 只保留最近的 keep 条记录，返回删除的数量。
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	records, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := keep; i < len(records); i++ {
		if err := os.Remove(s.path(records[i].ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
