// Package tui is the terminal journaling interface. The composer feeds the
// auto-send trigger, the queue's events are rendered as a live stream, and
// entry browsing and imports run as background jobs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/importer"
	"github.com/jacobB1290/JwebAPP-sub000/internal/queue"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

const defaultImportTimeout = 2 * time.Minute

// Config wires runtime collaborators into the TUI program. Queue is
// required; the rest switch features off when nil.
type Config struct {
	Queue         *queue.Queue
	Store         EntryStore
	Importer      Importer
	Reports       <-chan importer.Report
	Model         string
	Clock         queue.Clock
	ImportTimeout time.Duration
	Logger        logrus.FieldLogger
}

type model struct {
	config  Config
	stage   stage
	log     logrus.FieldLogger
	jobs    *jobBus
	trigger *queue.Trigger
	sent    chan queue.Job
	layout  pageLayout

	composer  textarea.Model
	urlInput  textinput.Model
	editInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model

	history     []store.Message
	entries     []store.Entry
	entryCursor int
	editTurn    queue.TurnID
	running     map[jobKind]bool
	spinning    bool

	infoMessage  string
	errorMessage string
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.ImportTimeout <= 0 {
		config.ImportTimeout = defaultImportTimeout
	}

	composer := textarea.New()
	composer.Placeholder = "What's on your mind?"
	composer.ShowLineNumbers = false
	composer.CharLimit = 0
	composer.SetWidth(80)
	composer.SetHeight(5)
	composer.Focus()

	urlInput := textinput.New()
	urlInput.Placeholder = "https://chatgpt.com/share/… or a transcript .pdf/.txt"
	urlInput.CharLimit = 400
	urlInput.Width = 70

	editInput := textinput.New()
	editInput.CharLimit = 0
	editInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 16)
	vp.MouseWheelEnabled = true

	m := &model{
		config:      config,
		stage:       stageWrite,
		log:         logger.WithField("component", "tui"),
		jobs:        newJobBus(logger),
		sent:        make(chan queue.Job, sentBuffer),
		layout:      newPageLayout(),
		composer:    composer,
		urlInput:    urlInput,
		editInput:   editInput,
		spinner:     spin,
		viewport:    vp,
		running:     map[jobKind]bool{},
		infoMessage: "Write as you would in a notebook. Ctrl+S sends right away.",
	}
	m.trigger = queue.NewTrigger(config.Clock, m.enqueue)
	return m
}

// enqueue runs on the trigger's timer goroutine as well as the update loop,
// so it only touches the queue and the sent channel.
func (m *model) enqueue(job queue.Job) {
	job = m.config.Queue.Enqueue(job)
	select {
	case m.sent <- job:
	default:
	}
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		waitForEvent(m.config.Queue.Events()),
		waitForSent(m.sent),
	}
	if m.config.Reports != nil {
		cmds = append(cmds, waitForReport(m.config.Reports))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.composer.SetWidth(m.layout.viewportWidth)
		m.composer.SetHeight(m.layout.composerHeight)
		m.refreshStream()
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshStream()
		return m, cmd
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	case queueEventMsg:
		m.handleQueueEvent(msg.Event)
		return m, tea.Batch(waitForEvent(m.config.Queue.Events()), m.startSpinner())
	case sentMsg:
		m.refreshStream()
		m.viewport.GotoBottom()
		return m, tea.Batch(waitForSent(m.sent), m.startSpinner())
	case backfillReportMsg:
		m.infoMessage = fmt.Sprintf("Filed %d imported conversation(s); %d failed.", msg.Report.Processed, msg.Report.Failed)
		return m, waitForReport(m.config.Reports)
	case jobSignalMsg:
		m.running[msg.Snapshot.Kind] = true
		return m, m.startSpinner()
	case jobResultEnvelope:
		delete(m.running, msg.Snapshot.Kind)
		if msg.Snapshot.Status == jobStatusFailed {
			m.errorMessage = msg.Snapshot.Err
			if msg.Snapshot.Kind == jobKindOpen || msg.Snapshot.Kind == jobKindEntries {
				m.stage = stageWrite
				m.composer.Focus()
			}
			return m, nil
		}
		return m.handleJobPayload(msg.Payload)
	}
	return m, nil
}

func (m *model) handleJobPayload(payload tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := payload.(type) {
	case entriesLoadedMsg:
		m.entries = msg.entries
		if m.entryCursor >= len(m.entries) {
			m.entryCursor = 0
		}
		if len(m.entries) == 0 {
			m.infoMessage = "No entries yet."
		}
	case entryOpenedMsg:
		m.config.Queue.NewSession()
		m.config.Queue.OpenEntry(msg.entry.ID, msg.entry.Title)
		m.trigger.Reset("")
		m.composer.Reset()
		m.history = msg.messages
		m.closeDialog()
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Continuing %q.", entryTitle(msg.entry.Title))
		m.refreshStream()
		m.viewport.GotoBottom()
	case importDoneMsg:
		m.infoMessage = fmt.Sprintf("Imported %d message(s) into %q; it will be filed shortly.", msg.result.Messages, msg.result.Entry.Title)
		m.errorMessage = ""
	}
	return m, nil
}

func (m *model) handleQueueEvent(ev queue.Event) {
	switch ev.Kind {
	case queue.EventStarted:
		m.infoMessage = "Reading…"
	case queue.EventFailed:
		m.errorMessage = fmt.Sprintf("The companion could not answer: %v (esc to dismiss)", ev.Err)
		m.infoMessage = ""
	case queue.EventCompleted:
		m.infoMessage = ""
		if ev.PersistErr != nil {
			m.errorMessage = fmt.Sprintf("Saving failed: %v (esc to dismiss)", ev.PersistErr)
		}
		if _, title := m.config.Queue.Entry(); title != "" {
			m.infoMessage = fmt.Sprintf("Saved to %q.", title)
		}
	}
	m.refreshStream()
	m.viewport.GotoBottom()
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageEntries:
		return m.handleEntriesKey(key)
	case stageImport:
		return m.handleImportKey(key)
	case stageEdit:
		return m.handleEditKey(key)
	default:
		return m.handleWriteKey(key)
	}
}

func (m *model) handleWriteKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		if m.errorMessage != "" {
			m.errorMessage = ""
			return m, nil
		}
		return m, nil
	case tea.KeyCtrlS:
		if _, ok := m.trigger.SendNow(); !ok {
			m.infoMessage = "Nothing new to send."
		}
		return m, nil
	case tea.KeyCtrlN:
		m.config.Queue.NewSession()
		m.trigger.Reset("")
		m.composer.Reset()
		m.history = nil
		m.infoMessage = "New entry. Start writing."
		m.refreshStream()
		return m, nil
	case tea.KeyCtrlL:
		if m.config.Store == nil {
			m.infoMessage = "Entry browsing is unavailable."
			return m, nil
		}
		m.stage = stageEntries
		m.composer.Blur()
		return m, m.jobs.Start(jobKindEntries, loadEntriesJob(m.config.Store))
	case tea.KeyCtrlO:
		if m.config.Importer == nil {
			m.infoMessage = "Importing is unavailable."
			return m, nil
		}
		m.stage = stageImport
		m.composer.Blur()
		m.urlInput.SetValue("")
		return m, m.urlInput.Focus()
	case tea.KeyCtrlE:
		return m.startEdit()
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return m, cmd
	}

	before := m.composer.Value()
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	if after := m.composer.Value(); after != before {
		m.trigger.Keystroke(after)
	}
	return m, cmd
}

func (m *model) handleEntriesKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.closeDialog()
	case "up", "k":
		if m.entryCursor > 0 {
			m.entryCursor--
		}
	case "down", "j":
		if m.entryCursor < len(m.entries)-1 {
			m.entryCursor++
		}
	case "enter":
		if len(m.entries) == 0 {
			return m, nil
		}
		id := m.entries[m.entryCursor].ID
		return m, m.jobs.Start(jobKindOpen, openEntryJob(m.config.Store, id))
	}
	return m, nil
}

func (m *model) handleImportKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.closeDialog()
		return m, nil
	case tea.KeyEnter:
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" {
			m.errorMessage = "Paste a share link to import."
			return m, nil
		}
		m.closeDialog()
		m.infoMessage = "Importing " + url
		return m, m.jobs.Start(jobKindImport, importJob(m.config.Importer, url, m.config.ImportTimeout))
	}
	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(key)
	return m, cmd
}

func (m *model) startEdit() (tea.Model, tea.Cmd) {
	turns := m.config.Queue.Arena().Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role != queue.HumanTurn {
			continue
		}
		if t.Processing {
			m.infoMessage = "Wait for the companion to finish before editing."
			return m, nil
		}
		m.editTurn = t.ID
		m.stage = stageEdit
		m.composer.Blur()
		m.editInput.SetValue(t.Content)
		m.editInput.CursorEnd()
		return m, m.editInput.Focus()
	}
	m.infoMessage = "Nothing sent yet."
	return m, nil
}

func (m *model) handleEditKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.closeDialog()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.editInput.Value())
		id := m.editTurn
		m.closeDialog()
		if text == "" {
			return m, nil
		}
		if _, ok := m.config.Queue.Resend(id, text); !ok {
			m.infoMessage = "Nothing changed."
			return m, nil
		}
		m.errorMessage = ""
		m.refreshStream()
		return m, m.startSpinner()
	}
	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(key)
	return m, cmd
}

func (m *model) closeDialog() {
	m.stage = stageWrite
	m.urlInput.Blur()
	m.editInput.Blur()
	m.editTurn = 0
	m.composer.Focus()
}

func (m *model) busy() bool {
	if len(m.running) > 0 {
		return true
	}
	switch m.config.Queue.State() {
	case queue.Queued, queue.Dispatching:
		return true
	}
	return false
}

func (m *model) startSpinner() tea.Cmd {
	if m.spinning || !m.busy() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *model) refreshStream() {
	content := buildStream(m.history, m.config.Queue.Arena().Turns(), m.viewport.Width, m.spinner.View())
	m.viewport.SetContent(content)
}

func entryTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled entry"
	}
	return title
}
