// Command salonbook はサロン予約サイトのGraphQL APIサーバーとバックグラウンドジョブを起動する。
//
// 使い方:
//
//	salonbook [serve|worker|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/salonbook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
