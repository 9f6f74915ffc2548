package main

import (
	"context"
	"os"

	"github.com/brensch/voro/internal/cli"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
	})
	logrus.SetLevel(logrus.InfoLevel)

	if err := voro(); err != nil {
		logrus.Fatal(err)
	}
}

func voro() error {
	root := cli.Root()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(context.Background())
}
