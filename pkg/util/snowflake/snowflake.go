package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
	initID   int64 = 1
)

// Init initializes the snowflake node. Call once at startup.
// machineID must be unique per instance when deployed across machines.
func Init(machineID int64) {
	initID = machineID
	nodeOnce.Do(func() {
		id := initID
		if id < 0 || id > 1023 {
			id = 1
			zap.L().Warn("invalid snowflake machine id in config, using default 1")
		}
		var err error
		node, err = snowflake.NewNode(id)
		if err != nil {
			zap.L().Fatal("failed to initialize snowflake node", zap.Error(err))
		}
	})
}

// GenerateID generates a snowflake id (int64).
func GenerateID() int64 {
	if node == nil {
		Init(initID)
	}
	return node.Generate().Int64()
}
