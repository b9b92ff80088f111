package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/prioflow/pkg/scheduling/intake"
	"github.com/vnykmshr/prioflow/pkg/sink"
)

// openSinks builds the sink for a run: "[Logger]" lines on out, plus the
// SQLite and Redis sinks when configured.
func (o *options) openSinks(ctx context.Context, out io.Writer) (sink.Sink, error) {
	sinks := sink.Multi{sink.NewText(out, sink.TextConfig{})}

	if path := o.cfg.SQLite.Path; path != "" {
		s, err := sink.OpenSQLite(ctx, path, o.logger)
		if err != nil {
			sinks.Close()
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if addr := o.cfg.Redis.Addr; addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			sinks.Close()
			return nil, fmt.Errorf("connect redis %s: %w", addr, err)
		}
		r, err := sink.NewRedis(sink.RedisConfig{
			Client: client,
			Key:    o.cfg.Redis.Key,
			TTL:    o.cfg.Redis.TTL,
			Close:  client.Close,
		})
		if err != nil {
			client.Close()
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, r)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// openSource opens the configured task file, or reads the interactive
// protocol from in with prompts on prompt.
func (o *options) openSource(in io.Reader, prompt io.Writer) (intake.Source, func() error, error) {
	if o.cfg.TaskFile != "" {
		fs, err := intake.OpenFile(o.cfg.TaskFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open task file: %w", err)
		}
		return fs, fs.Close, nil
	}
	if o.quiet {
		prompt = nil
	}
	return intake.NewScannerSource(in, prompt), func() error { return nil }, nil
}
