package v1

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type exportDownload struct {
	filePath   string
	exportedAt time.Time // 业务时区导出时间，用于文件名
	expiresAt  time.Time
}

// exportDownloadStore 一次性下载令牌
type exportDownloadStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items map[string]exportDownload
}

func newExportDownloadStore(clock clockwork.Clock) *exportDownloadStore {
	return &exportDownloadStore{
		clock: clock,
		items: make(map[string]exportDownload),
	}
}

func (s *exportDownloadStore) put(filePath string, exportedAt time.Time, ttl time.Duration) (token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.purgeExpiredLocked(now)

	token = newRandomToken(24)
	s.items[token] = exportDownload{
		filePath:   filePath,
		exportedAt: exportedAt,
		expiresAt:  now.Add(ttl),
	}
	return token
}

// take 取出并作废令牌
func (s *exportDownloadStore) take(token string) (exportDownload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(s.clock.Now())

	v, ok := s.items[token]
	if !ok {
		return exportDownload{}, false
	}
	delete(s.items, token)
	return v, true
}

// purgeExpiredLocked 清理过期令牌及其临时文件
func (s *exportDownloadStore) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			delete(s.items, k)
			_ = os.Remove(v.filePath)
		}
	}
}

func newRandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
