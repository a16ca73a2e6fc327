// Package keylock 提供按 key 的互斥锁，用于用户级串行化
package keylock

import "sync"

// KeyLock 按 key 分配互斥锁。不同 key 互不阻塞，同一 key 串行。
// 锁对象一经创建不回收：key 基数为活跃用户数，常驻成本可接受。
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New 创建 KeyLock
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock 获取 key 对应的互斥锁
func (kl *KeyLock) Lock(key string) {
	kl.get(key).Lock()
}

// Unlock 释放 key 对应的互斥锁
func (kl *KeyLock) Unlock(key string) {
	kl.get(key).Unlock()
}

func (kl *KeyLock) get(key string) *sync.Mutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &sync.Mutex{}
		kl.locks[key] = m
	}
	return m
}
