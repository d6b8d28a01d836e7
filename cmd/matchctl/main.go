// Package main - консольная утилита координатора программ менторства.
//
// matchctl работает поверх тех же команд и запросов, что и API:
// с DATABASE_URL - по живой базе, с -seed - по JSON-снимку в памяти
// (удобно для пробного прогона подбора до запуска программы).
//
//	matchctl [-env FILE] [-seed FILE] [-json] [-no-color] <command> [flags]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "matchctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}
