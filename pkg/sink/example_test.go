package sink_test

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/prioflow/pkg/sink"
	"github.com/vnykmshr/prioflow/pkg/task"
)

func ExampleText() {
	s := sink.NewText(os.Stdout, sink.TextConfig{})
	ctx := context.Background()

	_ = s.Consume(ctx, task.Record{Task: task.New("deploy", task.High), Status: task.Completed})
	_ = s.Consume(ctx, task.Record{Task: task.New("cleanup", task.Low), Status: task.Completed})
	_ = s.Close()

	// Output:
	// [Logger] Completed: deploy (Priority 1)
	// [Logger] Completed: cleanup (Priority 3)
}

// ExampleRedis needs a live server and does nothing without one.
func ExampleRedis() {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Println("Redis not available, skipping example")
		_ = rdb.Close()
		return
	}

	s, err := sink.NewRedis(sink.RedisConfig{Client: rdb, Key: "prioflow:example", Close: rdb.Close})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	_ = s.BeginRun(ctx, "example", "run-1")
	_ = s.Consume(ctx, task.Record{Task: task.New("deploy", task.High), Status: task.Completed})

	lines, _ := rdb.LRange(ctx, s.Key(), 0, -1).Result()
	fmt.Println(lines)
}
