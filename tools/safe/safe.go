package safe

import (
	"HRProject/logger"
)

// SafeGo 起一个带 recover 的 goroutine，panic 只打日志不拖垮进程
func SafeGo(f func()) {
	go Run(f)
}

// Run 在当前 goroutine 里执行 f，吞掉并记录 panic
func Run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[safe] panic recovered: %v", r)
		}
	}()
	f()
}
