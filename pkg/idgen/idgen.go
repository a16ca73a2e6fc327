// Package idgen 提供基于 snowflake 的全局唯一 ID 生成
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init 初始化 snowflake 节点，nodeID 取值范围 0-1023
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// GenID 生成一个全局唯一 ID
func GenID() int64 {
	if node == nil {
		// 未显式初始化时使用节点 0
		_ = Init(0)
	}
	return node.Generate().Int64()
}
