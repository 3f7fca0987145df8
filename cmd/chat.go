package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/sopclient"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

var (
	chatServer  string
	chatTimeout time.Duration
)

func GetChatCommand() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a running consultant over WebSocket",
		Long: `Opens an interactive session against a running sopdesk server.

Commands inside the session:
  /save   archive the last blueprint
  /reset  start a new conversation
  /quit   leave`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	chatCmd.Flags().StringVarP(&chatServer, "server", "s", "", "Server base URL (defaults to SERVER_URL)")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 60*time.Second, "Timeout for a single turn")
	return chatCmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	serverURL := chatServer
	if serverURL == "" {
		serverURL = cfg.ServerURL
	}

	session, err := sopclient.Dial(ctx, serverURL)
	if err != nil {
		return err
	}
	defer session.Close()
	client := sopclient.NewClient(serverURL, chatTimeout)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.CyanString("Connected to %s. Describe the paperwork you want to automate.", serverURL))

	var (
		history []domain.Turn
		phase   domain.Phase
		last    *domain.Blueprint
	)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, color.GreenString("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			history, phase, last = nil, "", nil
			fmt.Fprintln(out, color.CyanString("Conversation reset."))
			continue
		case "/save":
			if last == nil {
				fmt.Fprintln(out, color.RedString("No blueprint to save yet."))
				continue
			}
			saveCtx, cancel := context.WithTimeout(ctx, chatTimeout)
			saved, err := client.SaveBlueprint(saveCtx, *last)
			cancel()
			if err != nil {
				fmt.Fprintln(out, color.RedString("save failed: %v", err))
				continue
			}
			fmt.Fprintf(out, "%s %s\n", color.GreenString("saved as"), saved.RecordID)
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, chatTimeout)
		resp, err := session.Send(turnCtx, domain.TurnRequest{Message: line, History: history, Phase: string(phase)})
		cancel()
		if err != nil {
			var apiErr *sopclient.APIError
			if errors.As(err, &apiErr) {
				fmt.Fprintln(out, color.RedString("%s", apiErr.Message))
				continue
			}
			return err
		}

		history = append(history,
			domain.Turn{Role: domain.RoleUser, Content: line},
			domain.Turn{Role: domain.RoleAssistant, Content: resp.Message},
		)
		phase = resp.Phase
		if resp.Blueprint != nil {
			last = resp.Blueprint
		}
		renderReply(out, resp)
	}
}
