package main

// @title           PodTutor API
// @version         1.0
// @description     Turns uploaded documents into two-voice podcast episodes and answers questions about them.

// @contact.name   PodTutor OSS
// @contact.url    https://github.com/custodia-labs/podtutor/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api
// @schemes   http https

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
