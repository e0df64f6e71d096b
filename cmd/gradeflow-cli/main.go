// gradeflow CLI — инструмент командной строки для постановки задач
// на оценивание и просмотра их статуса через HTTP API шлюза.
//
// Использование:
//
//	gradeflow [--api-url URL] [--json] task <subcommand> [flags]
//
// Команды:
//
//	task submit  Поставить задачу в очередь (--wait — дождаться результата)
//	task status  Статус задачи
//	task watch   Опрашивать статус до завершения
//	task list    Список задач
//	task audit   Журнал решений по задаче
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/gradeflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "gradeflow",
		Short:         "gradeflow CLI — asynchronous exam evaluation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8000"
	if v := os.Getenv("GRADEFLOW_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "Gateway API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
