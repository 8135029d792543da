package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/app"
	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/service"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

const newChatsHistoryLimit = 1000

type runFunc func(ctx context.Context, cmd *cobra.Command, c *app.Container) error

// withContainer builds the container around an inline transport, or a
// partitioned queue that is drained before exit when async is set.
func withContainer(async bool, fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := observability.NewLogger(cfg.Logger, cfg.App)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var (
			transport app.Transport
			queue     *worker.Queue
		)
		if async {
			queue = worker.NewQueue(cfg.Queue, logger)
			transport = queue
		} else {
			transport = worker.NewInline(logger)
		}

		c, err := app.New(ctx, *cfg, logger, transport)
		if err != nil {
			return err
		}
		defer c.Close()

		if queue != nil {
			queue.Start(ctx)
			defer queue.Stop()
		}
		if err := fn(ctx, cmd, c); err != nil {
			return err
		}
		if queue != nil {
			return queue.Drain(ctx)
		}
		return nil
	}
}

func optionalFlag(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}

func newNewChatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new-chats",
		Short: "Reconcile every opened chat of every active token",
		RunE: withContainer(false, func(ctx context.Context, cmd *cobra.Command, c *app.Container) error {
			tokens, err := c.Repos.Profiles.ListActiveTokens(ctx, nil)
			if err != nil {
				return fmt.Errorf("list active tokens: %w", err)
			}
			chat := c.Services.Chat
			return worker.FanOut(ctx, c.Config.Scheduler.Concurrency, tokens, func(ctx context.Context, token domain.Token) error {
				chats, err := chat.OpenedChats(ctx, token.ID, false)
				if err != nil {
					return fmt.Errorf("token %s: %w", token.ID, err)
				}
				var errs []error
				for _, summary := range chats {
					res, err := chat.Reconcile(ctx, service.ReconcileChatTask{
						Profile:      token.ProfileID,
						Token:        token.ID,
						ChatID:       summary.ChatID,
						HistoryLimit: newChatsHistoryLimit,
					})
					if err != nil {
						errs = append(errs, fmt.Errorf("chat %s: %w", summary.ChatID, err))
						continue
					}
					if res.Created || res.Appended > 0 {
						c.Logger.Info("chat reconciled",
							zap.String("chat_id", summary.ChatID),
							zap.Bool("created", res.Created),
							zap.Int("appended", res.Appended))
					}
				}
				return errors.Join(errs...)
			})
		}),
	}
}

func newUpdateChatsCmd() *cobra.Command {
	var (
		profile string
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "update-chats",
		Short: "Sync unread chats for all profiles or one",
		RunE: withContainer(false, func(ctx context.Context, _ *cobra.Command, c *app.Container) error {
			return c.Services.Chat.DispatchProfile(ctx, optionalFlag(profile), !all)
		}),
	}
	cmd.Flags().StringVar(&profile, "profile", "", "profile id (all profiles when empty)")
	cmd.Flags().BoolVar(&all, "all", false, "include chats without unread messages")
	return cmd
}

func newUpdateChatCmd() *cobra.Command {
	var tokenID, chatID string
	cmd := &cobra.Command{
		Use:   "update-chat",
		Short: "Reconcile one chat, prompting for missing ids",
		RunE: withContainer(false, func(ctx context.Context, cmd *cobra.Command, c *app.Container) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if err := prompt(in, out, "Token id", &tokenID); err != nil {
				return err
			}
			if err := prompt(in, out, "Chat id", &chatID); err != nil {
				return err
			}

			token, err := c.Repos.Profiles.GetToken(ctx, tokenID)
			if err != nil {
				return fmt.Errorf("token %s: %w", tokenID, err)
			}
			res, err := c.Services.Chat.Reconcile(ctx, service.ReconcileChatTask{
				Profile: token.ProfileID,
				Token:   token.ID,
				ChatID:  chatID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ticket %s: created=%t updated=%t appended=%d\n", res.TicketID, res.Created, res.Updated, res.Appended)
			return nil
		}),
	}
	cmd.Flags().StringVar(&tokenID, "token", "", "token id")
	cmd.Flags().StringVar(&chatID, "chat", "", "marketplace chat id")
	return cmd
}

func newUpdateReviewsCmd() *cobra.Command {
	var (
		profile string
		async   bool
	)
	cmd := &cobra.Command{
		Use:   "update-reviews",
		Short: "Pull unprocessed reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(async, func(ctx context.Context, _ *cobra.Command, c *app.Container) error {
				tokens, err := c.Repos.Profiles.ListActiveTokens(ctx, optionalFlag(profile))
				if err != nil {
					return fmt.Errorf("list active tokens: %w", err)
				}
				var errs []error
				for _, token := range tokens {
					task := service.ReviewListTask{Profile: token.ProfileID, Token: token.ID}
					if err := c.Transport.Dispatch(ctx, task); err != nil {
						errs = append(errs, fmt.Errorf("token %s: %w", token.ID, err))
					}
				}
				return errors.Join(errs...)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "profile id (all profiles when empty)")
	cmd.Flags().BoolVar(&async, "async", false, "run through the partitioned queue")
	return cmd
}

func newUpdateQuestionsCmd() *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "update-questions",
		Short: "Pull new product questions",
		RunE: withContainer(false, func(ctx context.Context, _ *cobra.Command, c *app.Container) error {
			return c.Services.Question.DispatchAll(ctx, optionalFlag(profile))
		}),
	}
	cmd.Flags().StringVar(&profile, "profile", "", "profile id (all profiles when empty)")
	return cmd
}

func newRegisterProfileTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register-profile-type",
		Short: "Register the chat, question and review support channels",
		RunE: withContainer(false, func(ctx context.Context, cmd *cobra.Command, c *app.Container) error {
			for i, t := range domain.TicketTypes {
				created, err := c.Repos.ProfileTypes.Register(ctx, domain.ProfileType{Type: t, Sort: i})
				if err != nil {
					return fmt.Errorf("register %s: %w", t, err)
				}
				state := "exists"
				if created {
					state = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t, state)
			}
			return nil
		}),
	}
}

func newCreateOperatorCmd() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-operator",
		Short: "Create an admin operator",
		RunE: withContainer(false, func(ctx context.Context, cmd *cobra.Command, c *app.Container) error {
			op, err := c.Services.Auth.CreateOperator(ctx, email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "operator %s created (%s)\n", op.ID, op.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newOrderChatCmd() *cobra.Command {
	var (
		notice   service.OrderNotice
		products []string
	)
	cmd := &cobra.Command{
		Use:   "order-chat",
		Short: "Open a buyer chat for an order and send the greeting",
		RunE: withContainer(false, func(ctx context.Context, cmd *cobra.Command, c *app.Container) error {
			for _, p := range products {
				notice.Products = append(notice.Products, parseProduct(p))
			}
			if err := c.Services.OrderChat.Submit(ctx, notice); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s submitted\n", notice.Number)
			return nil
		}),
	}
	cmd.Flags().StringVar(&notice.Number, "order", "", "order or posting number")
	cmd.Flags().StringVar(&notice.Token, "token", "", "token id")
	cmd.Flags().StringVar(&notice.Profile, "profile", "", "owner profile id (token profile when empty)")
	cmd.Flags().StringVar(&notice.Greeting, "greeting", "", "greeting text (generated when empty)")
	cmd.Flags().StringArrayVar(&products, "product", nil, `product line as "name;characteristic;..." (repeatable)`)
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newIndexOrderCmd() *cobra.Command {
	var number, profile string
	cmd := &cobra.Command{
		Use:   "index-order",
		Short: "Bind an order number to its owner profile",
		RunE: withContainer(false, func(ctx context.Context, cmd *cobra.Command, c *app.Container) error {
			if err := c.Services.OrderChat.IndexOrder(ctx, number, profile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s indexed for %s\n", number, profile)
			return nil
		}),
	}
	cmd.Flags().StringVar(&number, "order", "", "order or posting number")
	cmd.Flags().StringVar(&profile, "profile", "", "owner profile id")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

// parseProduct splits "name;characteristic;..." into a product line.
func parseProduct(raw string) service.OrderProduct {
	parts := strings.Split(raw, ";")
	product := service.OrderProduct{Name: strings.TrimSpace(parts[0])}
	for _, ch := range parts[1:] {
		if ch = strings.TrimSpace(ch); ch != "" {
			product.Characteristics = append(product.Characteristics, ch)
		}
	}
	return product
}

// prompt asks for val on out and reads a line from in when val is empty.
func prompt(in *bufio.Reader, out io.Writer, label string, val *string) error {
	for strings.TrimSpace(*val) == "" {
		fmt.Fprintf(out, "%s: ", label)
		line, err := in.ReadString('\n')
		*val = strings.TrimSpace(line)
		if err != nil {
			if errors.Is(err, io.EOF) && *val != "" {
				return nil
			}
			return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
	}
	return nil
}
