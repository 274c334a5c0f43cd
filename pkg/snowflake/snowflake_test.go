package snowflake

import (
	"strings"
	"sync"
	"testing"
)

// 基础测试：能不能生成 ID
func TestGenID(t *testing.T) {
	id := GenID()
	if id <= 0 {
		t.Fatalf("expected id > 0, got %d", id)
	}
}

// 唯一性测试：单线程生成
func TestGenOrderNo_Unique(t *testing.T) {
	const n = 10000
	ids := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		id := GenOrderNo()
		if _, exists := ids[id]; exists {
			t.Fatalf("duplicate order no found: %s", id)
		}
		ids[id] = struct{}{}
	}
}

func TestGenOutTradeNo_Format(t *testing.T) {
	no := GenOutTradeNo()
	if !strings.HasPrefix(no, "OUT") || len(no) > 32 {
		t.Fatalf("bad out_trade_no %q", no)
	}
	if GenOrderNo()[:3] != "PAY" {
		t.Fatalf("bad order no prefix")
	}
}

// 并发测试：订单号和商户单号共用同一个节点，不能撞号
func TestGen_Concurrent(t *testing.T) {
	const (
		goroutines = 20
		perRoutine = 2000
	)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{}, goroutines*perRoutine)
		dup string
	)

	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perRoutine; i++ {
				id := GenOrderNo()[3:]

				mu.Lock()
				if _, exists := ids[id]; exists && dup == "" {
					dup = id
				}
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if dup != "" {
		t.Fatalf("duplicate id found in concurrent test: %s", dup)
	}
}
