package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/nats-io/nats.go"
	"github.com/runbox/runbox/api"
	"github.com/runbox/runbox/internal/gatherer"
	"github.com/runbox/runbox/internal/gatherer/natsgath"
	"github.com/runbox/runbox/sqsgath"
	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "poll the request queue and execute submissions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "runtimes", Usage: "TOML file overlaying the builtin runtime table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			h, err := newHost(cmd.String("runtimes"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			started := false
			if h.cfg.NatsUrl != "" {
				if err := serveNats(ctx, h); err != nil {
					return err
				}
				started = true
			}
			if h.cfg.ReqSqsUrl != "" {
				go serveSqs(ctx, h)
				started = true
			}
			if !started {
				return fmt.Errorf("no transport configured; set RUNBOX_REQ_SQS_URL or RUNBOX_NATS_URL")
			}

			slog.Info("serving", "sqs", h.cfg.ReqSqsUrl != "", "nats", h.cfg.NatsUrl != "")
			<-ctx.Done()
			slog.Info("shutting down")
			return nil
		},
	}
}

// serveSqs polls the request queue. A message is deleted only after its
// execution produced a result, so a crash mid-run redelivers the
// request instead of losing it.
func serveSqs(ctx context.Context, h *host) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(h.cfg.AwsRegion))
	if err != nil {
		slog.Error("unable to load SDK config", "error", err)
		return
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	for {
		if ctx.Err() != nil {
			return
		}
		output, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(h.cfg.ReqSqsUrl),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     5,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to receive messages", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		for _, message := range output.Messages {
			var req api.ExecReq
			if err := json.Unmarshal([]byte(*message.Body), &req); err != nil {
				slog.Error("failed to unmarshal message", "error", err)
				continue
			}

			receipt := message.ReceiptHandle
			go func() {
				resUrl := req.ResSqsUrl
				if resUrl == "" {
					resUrl = h.cfg.ResSqsUrl
				}
				var gath gatherer.ResultGatherer = gatherer.Discard{}
				if resUrl != "" {
					gath = sqsgath.NewSqsResponseQueueGatherer(req.ExecUuid, resUrl, h.cfg.AwsRegion)
				}

				res := h.pool.Execute(ctx, req, gath)
				slog.Info("request handled", "exec_uuid", res.ExecUuid, "status", res.Status)

				_, err := sqsClient.DeleteMessage(context.Background(), &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(h.cfg.ReqSqsUrl),
					ReceiptHandle: receipt,
				})
				if err != nil {
					slog.Error("failed to delete message", "error", err)
				}
			}()
		}
	}
}

// serveNats subscribes to the execution subject; progress events go to
// the request's reply inbox.
func serveNats(ctx context.Context, h *host) error {
	nc, err := nats.Connect(h.cfg.NatsUrl)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sub, err := nc.QueueSubscribe("runbox.exec", "runbox", func(msg *nats.Msg) {
		var req api.ExecReq
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error("failed to unmarshal message", "error", err)
			return
		}

		go func() {
			var gath gatherer.ResultGatherer = gatherer.Discard{}
			if msg.Reply != "" {
				gath = natsgath.New(nc, req.ExecUuid, msg.Reply)
			}
			res := h.pool.Execute(ctx, req, gath)
			slog.Info("request handled", "exec_uuid", res.ExecUuid, "status", res.Status)
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Drain()
		nc.Close()
	}()
	return nil
}
