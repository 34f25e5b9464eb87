package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hibiken/asynq"
)

// Commands is the operational surface exposed on the command line.
type Commands interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	CompletePayment(ctx context.Context, rentalID int64, paymentRef string) error
	CompletePeriod(ctx context.Context, rentalID int64) error
	InspectQueues(ctx context.Context) ([]QueueStats, error)
}

// ErrUsage is returned for malformed invocations.
var ErrUsage = errors.New(`usage:
  heritage jobs trigger <rental:sweep|idempotency:cleanup>
  heritage jobs payment <rental-id> <payment-ref>
  heritage jobs period-ended <rental-id>
  heritage jobs queues`)

// Run executes one jobs subcommand.
func Run(ctx context.Context, cmds Commands, args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "trigger":
		if len(args) != 2 {
			return ErrUsage
		}
		info, err := cmds.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s (%s)\n", info.Type, info.ID)
	case "payment":
		if len(args) != 3 || args[2] == "" {
			return ErrUsage
		}
		id, err := parseRentalID(args[1])
		if err != nil {
			return err
		}
		if err := cmds.CompletePayment(ctx, id, args[2]); err != nil {
			return err
		}
		fmt.Fprintf(out, "payment %s queued for rental %d\n", args[2], id)
	case "period-ended":
		if len(args) != 2 {
			return ErrUsage
		}
		id, err := parseRentalID(args[1])
		if err != nil {
			return err
		}
		if err := cmds.CompletePeriod(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "completion queued for rental %d\n", id)
	case "queues":
		stats, err := cmds.InspectQueues(ctx)
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Fprintf(out, "%-14s pending=%d active=%d scheduled=%d retry=%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
		}
	default:
		return ErrUsage
	}
	return nil
}

func parseRentalID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rental id %q", raw)
	}
	return id, nil
}

var _ Commands = (*JobsCLI)(nil)
