package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/adapter/redis/valueport"
	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/config"
	"gitlab.com/autoserver-2025.net/internal/core/services/mirror"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/tcp"
)

const callTimeout = 10 * time.Second

var (
	remoteAddr   string
	remotePrefix string
	remoteToken  string
	remoteJob    uint32

	controlCommand    string
	controlBreakpoint int
	controlClear      bool

	replyID     uint64
	replyValue  string
	replyCancel bool
)

// remote bundles a connection with the service identities of one server
type remote struct {
	client *tcp.Client
	prefix string
}

func dialRemote(ctx context.Context, logger *logging.ZapLogger) (*remote, error) {
	var options []tcp.ClientOption
	token := remoteToken
	if token == "" {
		token = os.Getenv("AUTOSERVER_TOKEN")
	}
	if token != "" {
		options = append(options, tcp.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	}
	client, err := tcp.Dial(ctx, remoteAddr, logger, options...)
	if err != nil {
		return nil, err
	}
	prefix := remotePrefix
	if prefix == "" {
		prefix = config.NewServerConfig().Prefix
	}
	return &remote{client: client, prefix: prefix}, nil
}

func (r *remote) info() *protocol.InfoClient {
	return protocol.NewInfoClient(r.client.Invoker(protocol.InfoServiceName(r.prefix)))
}

func (r *remote) control() *protocol.ControlClient {
	return protocol.NewControlClient(r.client.Invoker(protocol.ControlServiceName(r.prefix)))
}

func (r *remote) input() *protocol.InputClient {
	return protocol.NewInputClient(r.client.Invoker(protocol.InputServiceName(r.prefix)))
}

// --- monitor ---

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the published state of a job until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	sysCfg := config.NewSystemConfig()
	logger := logging.NewZapLogger(sysCfg.LogLevel)
	if !sysCfg.RedisConfig.Enabled() {
		return errors.New("monitor follows values through redis, set REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := dialRemote(ctx, logger)
	if err != nil {
		return err
	}
	defer r.client.Close()

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	info, err := r.info().GetJobInfo(callCtx, remoteJob)
	cancel()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %q: %d instructions, %d variables\n",
		info.Prefix, info.ProcedureName, info.NumberOfInstructions, info.NumberOfVariables)

	redisClient, err := newRedisClient(ctx, sysCfg.RedisConfig)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	m := mirror.New(newPrinter(out, info), logger)
	err = m.Follow(ctx, valueport.NewValuePort(redisClient, logger), info.Prefix)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// --- control ---

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Send a command to a job or edit one of its breakpoints",
	Args:  cobra.NoArgs,
	RunE:  runControl,
}

func runControl(cmd *cobra.Command, args []string) error {
	logger := logging.NewZapLogger(config.NewSystemConfig().LogLevel)
	if controlCommand == "" && controlBreakpoint < 0 {
		return errors.New("nothing to do, pass --command or --breakpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	r, err := dialRemote(ctx, logger)
	if err != nil {
		return err
	}
	defer r.client.Close()

	if controlBreakpoint >= 0 {
		if err := r.control().EditBreakpoint(ctx, remoteJob, uint32(controlBreakpoint), !controlClear); err != nil {
			return err
		}
	}
	if controlCommand != "" {
		command, ok := domain.ParseJobCommand(controlCommand)
		if !ok {
			return fmt.Errorf("unknown command %q", controlCommand)
		}
		if err := r.control().SendJobCommand(ctx, remoteJob, command); err != nil {
			return err
		}
	}
	return nil
}

// --- reply ---

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Answer a pending input request of a job",
	Args:  cobra.NoArgs,
	RunE:  runReply,
}

func runReply(cmd *cobra.Command, args []string) error {
	logger := logging.NewZapLogger(config.NewSystemConfig().LogLevel)

	reply := domain.UserInputReply{Result: !replyCancel, Value: anyvalue.Empty}
	if replyValue != "" {
		value, err := anyvalue.FromJSON([]byte(replyValue))
		if err != nil {
			return fmt.Errorf("invalid --value, expected JSON: %w", err)
		}
		reply.Value = value
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	r, err := dialRemote(ctx, logger)
	if err != nil {
		return err
	}
	defer r.client.Close()

	return r.input().SetClientReply(ctx, remoteJob, replyID, reply)
}

func init() {
	for _, c := range []*cobra.Command{monitorCmd, controlCmd, replyCmd} {
		c.Flags().StringVar(&remoteAddr, "addr", "localhost:9000", "TCP address of the server")
		c.Flags().StringVar(&remotePrefix, "prefix", "", "Server prefix (default $SERVER_PREFIX)")
		c.Flags().StringVar(&remoteToken, "token", "", "Bearer token (default $AUTOSERVER_TOKEN)")
		c.Flags().Uint32Var(&remoteJob, "job", 0, "Job index")
		rootCmd.AddCommand(c)
	}

	controlCmd.Flags().StringVar(&controlCommand, "command", "", "start, step, pause, reset or halt")
	controlCmd.Flags().IntVar(&controlBreakpoint, "breakpoint", -1, "Instruction index whose breakpoint to set")
	controlCmd.Flags().BoolVar(&controlClear, "clear", false, "Clear the breakpoint instead of setting it")

	replyCmd.Flags().Uint64Var(&replyID, "id", 0, "Input request id")
	replyCmd.Flags().StringVar(&replyValue, "value", "", "Reply value as JSON")
	replyCmd.Flags().BoolVar(&replyCancel, "cancel", false, "Decline the request")
	_ = replyCmd.MarkFlagRequired("id")
}
