package ids

import (
	"strconv"
	"sync"
	"time"
)

// 41 bits 毫秒时间戳 | 10 bits 节点 | 12 bits 序列
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = (1 << nodeBits) - 1
	seqMask  = (1 << seqBits) - 1
)

type snowflake struct {
	mu     sync.Mutex
	epoch  int64 // 毫秒
	node   int64
	seq    int64
	lastMS int64
}

var (
	gen  *snowflake
	once sync.Once
)

func get() *snowflake {
	once.Do(func() {
		gen = &snowflake{
			epoch: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
			node:  1,
		}
	})
	return gen
}

// SetNodeID 部署时给每个实例分配 0~1023 的节点号；越界回退到 1
func SetNodeID(node int64) {
	g := get()
	if node < 0 || node > maxNode {
		node = 1
	}
	g.mu.Lock()
	g.node = node
	g.mu.Unlock()
}

func Generate() int64 {
	return get().next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

func (g *snowflake) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	// 时钟回拨：原地等到追平为止
	for now < g.lastMS {
		time.Sleep(time.Duration(g.lastMS-now) * time.Millisecond)
		now = time.Now().UnixMilli()
	}

	if now == g.lastMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			for now <= g.lastMS {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastMS = now

	return ((now - g.epoch) << (nodeBits + seqBits)) | (g.node << seqBits) | g.seq
}
