package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/guseggert/nailgun/server"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "ngserver",
		Usage: "a nailgun server that runs requested commands as local processes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen-addr",
				Usage: "The address for the TCP listener.",
				Value: "127.0.0.1:2113",
			},
			&cli.StringFlag{
				Name:  "http-listen-addr",
				Usage: "If set, also serve WebSocket sessions on GET /nailgun at this address.",
			},
			&cli.StringSliceFlag{
				Name:  "alias",
				Usage: "Alias in the form name=command [args...]. Can be repeated.",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "One of [debug,info,warn,error].",
				Value: "info",
			},
		},
		Action: func(ctx *cli.Context) error {
			listenAddr := ctx.String("listen-addr")
			httpListenAddr := ctx.String("http-listen-addr")

			level, err := zapcore.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("parsing log level: %w", err)
			}

			opts := []server.Option{server.WithLogLevel(level)}
			for _, spec := range ctx.StringSlice("alias") {
				name, argv, err := server.ParseAlias(spec)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithAlias(name, argv...))
			}

			srv, err := server.New(opts...)
			if err != nil {
				return fmt.Errorf("building server: %w", err)
			}

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("listening TCP: %w", err)
			}

			group, groupCtx := errgroup.WithContext(runCtx)
			group.Go(func() error {
				return srv.Serve(groupCtx, listener)
			})
			if httpListenAddr != "" {
				httpServer := &http.Server{Addr: httpListenAddr, Handler: srv.Handler()}
				group.Go(func() error {
					err := httpServer.ListenAndServe()
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				})
				group.Go(func() error {
					<-groupCtx.Done()
					return httpServer.Shutdown(context.Background())
				})
			}
			return group.Wait()
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
