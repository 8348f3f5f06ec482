package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"astral-auth/internal/apiclient"
	"astral-auth/internal/config"
	"astral-auth/internal/domain"
	"astral-auth/internal/loginflow"
)

// terminalView pinta el estado del flujo en la terminal.
type terminalView struct {
	mu       sync.Mutex
	lastMsg  string
	done     chan string
	doneOnce sync.Once
}

func (v *terminalView) Render(state domain.FlowState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case state.IsLoading:
		fmt.Println("...")
	case state.IsSuccess:
		fmt.Println("Signed in. Redirecting...")
	case state.ErrorMessage != "" && state.ErrorMessage != v.lastMsg:
		fmt.Printf("! %s\n", state.ErrorMessage)
	}
	v.lastMsg = state.ErrorMessage
}

func (v *terminalView) Focus(field loginflow.Field) {}

func (v *terminalView) Navigate(path string) {
	v.doneOnce.Do(func() { v.done <- path })
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadCLIConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	view := &terminalView{done: make(chan string, 1)}
	client := apiclient.NewClient(cfg.APIBaseURL, logger)
	flow := loginflow.New(client, view,
		loginflow.WithLogger(logger),
		loginflow.WithRedirectDelay(cfg.SuccessRedirectDelay()),
	)
	defer flow.Close()

	for {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		_ = flow.SetEmail(strings.TrimSpace(line))
		if err := flow.SubmitEmail(ctx); err != nil {
			if errors.Is(err, loginflow.ErrBlankEmail) {
				fmt.Println("! Enter your email")
				continue
			}
			log.Fatal(err)
		}
		if flow.State().Step == domain.StepOTP {
			break
		}
	}

	fmt.Printf("We sent a code to %s\n", flow.State().Email)
	for !flow.State().IsSuccess {
		fmt.Print("Code: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		_ = flow.SetCode(strings.TrimSpace(line))
		if err := flow.SubmitCode(ctx); err != nil {
			if errors.Is(err, loginflow.ErrIncompleteCode) {
				fmt.Printf("! The code has %d digits\n", loginflow.CodeLength)
				continue
			}
			log.Fatal(err)
		}
	}

	path := <-view.done
	fmt.Printf("-> %s%s\n", strings.TrimRight(cfg.APIBaseURL, "/"), path)
}
