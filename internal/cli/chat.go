package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ragchat/internal/logger"
	"ragchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Indexes the configured data directory and opens an interactive chat.
The whole terminal session shares one conversation history.

Controls:
  Enter      - Ask
  ↑/↓ PgUp/PgDn - Scroll the transcript
  Ctrl+C     - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	c := a.assistant.Reload(cmd.Context())
	// log lines would corrupt the alternate screen
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	header := fmt.Sprintf("%d chunks from %d documents in %s", c.Len(), len(c.Sitemap.Documents), cfg.Corpus.DataDir)
	if n := len(c.Failures); n > 0 {
		header += fmt.Sprintf(" (%d failed)", n)
	}

	m := tui.New(a.assistant, uuid.NewString(), header, 2*cfg.Timeouts.Overall())
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
