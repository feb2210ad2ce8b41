package ds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/watch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var watchCmd = &cobra.Command{
	Use:   "watch [key]...",
	Short: "Prints every change of one or more keys until interrupted",
	Long: `Subscribes to one or more keys and prints the new value whenever it changes.
The keys are polled, the interval adapts to the read latency of the server
(see the --watch-* flags). Removed keys are not reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := dataStore()
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := &updateWriter{w: cmd.OutOrStdout(), format: out.format, limited: count > 0, remaining: count, done: stop}

		conns := make([]*watch.Connection, 0, len(args))
		for _, key := range args {
			conns = append(conns, store.OnUpdate(key, func(value any) {
				w.write(key, value)
			}))
		}

		<-ctx.Done()
		for _, conn := range conns {
			conn.Disconnect()
		}
		return w.result()
	},
}

func init() {
	watchCmd.Flags().Int("count", 0, "Exit after this many updates (0 waits for an interrupt)")
}

// updateWriter prints updates of concurrent subscriptions one at a time
type updateWriter struct {
	mu        sync.Mutex
	w         io.Writer
	format    string
	limited   bool
	remaining int
	done      func()
	err       error
}

// update is the printed form of a single change
type update struct {
	Time  time.Time `json:"time" yaml:"time"`
	Key   string    `json:"key" yaml:"key"`
	Value any       `json:"value" yaml:"value"`
}

func (u *updateWriter) write(key string, value any) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.err != nil || (u.limited && u.remaining == 0) {
		return
	}

	upd := update{Time: time.Now(), Key: key, Value: value}
	switch u.format {
	case FormatYAML:
		var b []byte
		if b, u.err = yaml.Marshal(upd); u.err == nil {
			_, u.err = fmt.Fprintf(u.w, "---\n%s", b)
		}
	case FormatJSON:
		// one object per line
		u.err = json.NewEncoder(u.w).Encode(upd)
	default:
		var b []byte
		if b, u.err = json.Marshal(value); u.err == nil {
			_, u.err = fmt.Fprintf(u.w, "%s  %s  %s\n", upd.Time.Format(time.TimeOnly), key, b)
		}
	}

	if u.err != nil {
		u.done()
		return
	}
	if u.limited {
		u.remaining--
		if u.remaining == 0 {
			u.done()
		}
	}
}

// result returns the first write error
func (u *updateWriter) result() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}
