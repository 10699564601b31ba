package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hitesh22rana/provisioner/internal/clientsync"
	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

const (
	defaultRefreshInterval = 2 * time.Second
	minLogHeight           = 5
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)

	streamColors = map[clientsync.StreamState]lipgloss.Color{
		clientsync.StreamStateConnecting: lipgloss.Color("11"),
		clientsync.StreamStateStreaming:  lipgloss.Color("12"),
		clientsync.StreamStateCompleted:  lipgloss.Color("10"),
		clientsync.StreamStateStalled:    lipgloss.Color("9"),
	}
)

func newWatchCmd(opts *options) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive dashboard of the provisioning jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			hosts, err := c.ListHosts(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(hosts))
			for _, h := range hosts {
				names = append(names, h.Name)
			}

			layer := clientsync.New(c)
			defer layer.Detach()

			m := newWatchModel(cmd.Context(), layer, names, refresh)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", defaultRefreshInterval, "job list refresh interval")
	return cmd
}

// changeMsg signals that the view of the layer changed.
type changeMsg struct{}

// tickMsg triggers a list refresh.
type tickMsg struct{}

// actionMsg carries the outcome of a request made from the dashboard.
type actionMsg struct {
	notice string
	err    error
}

type watchModel struct {
	ctx     context.Context
	layer   *clientsync.Layer
	changes chan struct{}
	refresh time.Duration

	hosts  []string
	host   int
	cursor int
	snap   clientsync.Snapshot
	notice string
	err    error

	width  int
	height int
}

func newWatchModel(ctx context.Context, layer *clientsync.Layer, hosts []string, refresh time.Duration) *watchModel {
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}

	m := &watchModel{
		ctx:     ctx,
		layer:   layer,
		changes: make(chan struct{}, 1),
		refresh: refresh,
		hosts:   hosts,
		snap:    layer.Snapshot(),
	}

	layer.OnChange(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})

	return m
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.refreshList(), m.tick(), m.listen())
}

func (m *watchModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changeMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *watchModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *watchModel) refreshList() tea.Cmd {
	return func() tea.Msg {
		return actionMsg{err: m.layer.RefreshList(m.ctx)}
	}
}

func (m *watchModel) createJob(tool jobsmodel.Tool) tea.Cmd {
	if len(m.hosts) == 0 {
		return nil
	}
	host := m.hosts[m.host]

	return func() tea.Msg {
		job, err := m.layer.CreateJob(m.ctx, tool.ToString(), host)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{notice: fmt.Sprintf("created %s (%s on %s)", job.ID, tool.Label(), host)}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case changeMsg:
		m.snap = m.layer.Snapshot()
		m.cursor = min(m.cursor, max(len(m.snap.Jobs)-1, 0))
		return m, m.listen()

	case tickMsg:
		return m, tea.Batch(m.refreshList(), m.tick())

	case actionMsg:
		if msg.notice != "" {
			m.notice = msg.notice
		}
		m.err = msg.err

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	return m, nil
}

func (m *watchModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		m.layer.Detach()
		return tea.Quit
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, max(len(m.snap.Jobs)-1, 0))
	case "enter":
		if m.cursor < len(m.snap.Jobs) {
			m.layer.AttachToJob(m.ctx, m.snap.Jobs[m.cursor].ID)
		}
	case "esc":
		m.layer.Detach()
	case "tab", "h":
		if len(m.hosts) > 0 {
			m.host = (m.host + 1) % len(m.hosts)
		}
	case "r":
		return m.refreshList()
	default:
		// 1..n create a job for the n-th tool
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(jobsmodel.Tools) {
			return m.createJob(jobsmodel.Tools[key[0]-'1'])
		}
	}

	return nil
}

func (m *watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("provisioner"))
	if len(m.hosts) > 0 {
		fmt.Fprintf(&b, "  %s %s", mutedStyle.Render("target host:"), headerStyle.Render(m.hosts[m.host]))
	}
	b.WriteString("\n")

	actions := make([]string, 0, len(jobsmodel.Tools))
	for i, tool := range jobsmodel.Tools {
		actions = append(actions, fmt.Sprintf("[%d] %s", i+1, tool.Label()))
	}
	b.WriteString(mutedStyle.Render(strings.Join(actions, "  ")))
	b.WriteString("\n\n")

	b.WriteString(m.viewJobs())
	b.WriteString("\n")
	b.WriteString(m.viewLogs())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(errorMessage(m.err)))
	case m.snap.Err != nil:
		b.WriteString(errorStyle.Render(errorMessage(m.snap.Err)))
	case m.notice != "":
		b.WriteString(mutedStyle.Render(m.notice))
	}
	b.WriteString("\n")

	b.WriteString(mutedStyle.Render("↑/↓ select  enter follow  esc detach  tab host  r refresh  q quit"))
	return b.String()
}

func (m *watchModel) viewJobs() string {
	if len(m.snap.Jobs) == 0 {
		return mutedStyle.Render("no jobs yet")
	}

	rows := make([]string, 0, len(m.snap.Jobs))
	for i, job := range m.snap.Jobs {
		marker := " "
		if job.ID == m.snap.SelectedJobID {
			marker = "●"
		}
		row := fmt.Sprintf("%s %-36s  %-10s  %-12s  ", marker, job.ID, job.Tool.ToString(), job.TargetHost)
		if i == m.cursor {
			row = selectedStyle.Render(row)
		}
		rows = append(rows, row+statusBadge(job.Status))
	}

	return strings.Join(rows, "\n")
}

func (m *watchModel) viewLogs() string {
	if m.snap.SelectedJobID == "" {
		return paneStyle.Render(mutedStyle.Render("press enter to follow the log of the selected job"))
	}

	header := fmt.Sprintf("%s  %s", headerStyle.Render(m.snap.SelectedJobID), streamBadge(m.snap.State))
	if m.snap.State == clientsync.StreamStateCompleted {
		header += "  " + statusBadge(m.snap.FinalStatus)
	}

	// Keep the tail of the log in view
	height := max(m.height-len(m.snap.Jobs)-10, minLogHeight)
	lines := m.snap.Lines
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}

	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		texts = append(texts, line.Text)
	}

	pane := paneStyle
	if m.width > 4 {
		pane = pane.Width(m.width - 4)
	}
	return pane.Render(header + "\n" + strings.Join(texts, "\n"))
}

// streamBadge renders the state of the followed log.
func streamBadge(s clientsync.StreamState) string {
	color, ok := streamColors[s]
	if !ok {
		return mutedStyle.Render(string(s))
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(s))
}
