package errors

import "sync"

var (
	registryMu sync.RWMutex
	registry   = make(map[int]*Errno)
)

// Register 注册错误码. 重复注册同一错误码会 panic, 避免编号冲突.
func Register(e *Errno) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if prev, ok := registry[e.Code]; ok && prev != e {
		panic("errors: duplicate error code " + prev.MessageEN)
	}
	registry[e.Code] = e
}

// Lookup 按错误码查找已注册的 Errno.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	e, ok := registry[code]
	return e, ok
}

// Codes 返回所有已注册的错误码, 用于文档生成与对账.
func Codes() []int {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]int, 0, len(registry))
	for code := range registry {
		out = append(out, code)
	}
	return out
}
