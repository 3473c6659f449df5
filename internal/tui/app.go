// Package tui is the terminal surface for browsing saved tabs. It
// renders the same projections the extension's list page shows and
// refreshes live when any surface changes the record set.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/tabspeicher/internal/exchange"
	"github.com/lotas/tabspeicher/internal/notify"
	"github.com/lotas/tabspeicher/internal/projection"
	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

// --- Messages ---

type recordsLoadedMsg struct {
	records []types.Record
	mode    types.ViewMode
	err     error
}

type recordsChangedMsg struct{}

type exportDoneMsg struct {
	path string
	err  error
}

type statusExpiredMsg struct{}

const statusTTL = 2 * time.Second

// --- Model ---

type Model struct {
	store *storage.RecordStore
	hub   *notify.Hub
	exch  *exchange.Exchanger

	records []types.Record
	mode    types.ViewMode
	proj    projection.Projection
	rows    []row

	cursor int
	offset int

	search    textinput.Model
	searching bool

	status string
	err    error
	width  int
	height int

	subID  string
	events <-chan notify.Event
}

func NewModel(store *storage.RecordStore, hub *notify.Hub, exch *exchange.Exchanger) Model {
	search := textinput.New()
	search.Placeholder = "search title or url"
	search.Prompt = "/ "
	search.CharLimit = 128

	id, events := hub.Subscribe()
	return Model{
		store:  store,
		hub:    hub,
		exch:   exch,
		mode:   types.ViewByDate,
		search: search,
		subID:  id,
		events: events,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadRecords(m.store), waitForChange(m.events))
}

// --- Commands ---

func loadRecords(store *storage.RecordStore) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		records, err := store.GetAll(ctx)
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		mode, err := store.ViewMode(ctx)
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		return recordsLoadedMsg{records: records, mode: mode}
	}
}

func waitForChange(events <-chan notify.Event) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-events; !ok {
			return nil
		}
		return recordsChangedMsg{}
	}
}

func setViewMode(store *storage.RecordStore, mode types.ViewMode) tea.Cmd {
	return func() tea.Msg {
		store.SetViewMode(context.Background(), mode)
		return nil
	}
}

func deleteRecord(store *storage.RecordStore, hub *notify.Hub, id types.RecordID) tea.Cmd {
	return func() tea.Msg {
		if err := store.Remove(context.Background(), id); err != nil {
			return recordsLoadedMsg{err: err}
		}
		hub.Publish()
		return recordsChangedMsg{}
	}
}

func runExport(exch *exchange.Exchanger) tea.Cmd {
	return func() tea.Msg {
		path, err := exch.Export(context.Background())
		return exportDoneMsg{path: path, err: err}
	}
}

func expireStatus() tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return statusExpiredMsg{} })
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = m.width - 4
		m.clampCursor()
		return m, nil

	case recordsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.records = msg.records
		m.mode = msg.mode
		m.rebuild()
		return m, nil

	case recordsChangedMsg:
		return m, tea.Batch(loadRecords(m.store), waitForChange(m.events))

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "exported to " + msg.path
		}
		return m, expireStatus()

	case statusExpiredMsg:
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.rebuild()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.rebuild()
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.hub.Unsubscribe(m.subID)
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "d":
		return m.switchMode(types.ViewByDate)
	case "t":
		return m.switchMode(types.ViewByTitle)
	case "o":
		return m.switchMode(types.ViewByDomain)
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.rebuild()
		}
	case "x", "delete":
		if rec := m.selectedRecord(); rec != nil {
			return m, deleteRecord(m.store, m.hub, rec.ID)
		}
	case "e":
		m.status = "exporting..."
		return m, runExport(m.exch)
	}
	return m, nil
}

func (m *Model) switchMode(mode types.ViewMode) (tea.Model, tea.Cmd) {
	if m.mode == mode {
		return *m, nil
	}
	m.mode = mode
	m.rebuild()
	return *m, setViewMode(m.store, mode)
}

// rebuild recomputes the projection and the flattened row list after
// any change to records, mode, or search.
func (m *Model) rebuild() {
	m.proj = projection.Project(m.records, m.mode, m.search.Value(), time.Now())
	m.rows = flatten(m.proj)
	m.clampCursor()
}

func (m *Model) selectedRecord() *types.Record {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].record
}

func (m *Model) moveCursor(delta int) {
	next := m.cursor
	for {
		next += delta
		if next < 0 || next >= len(m.rows) {
			return
		}
		if m.rows[next].record != nil {
			m.cursor = next
			m.scrollToCursor()
			return
		}
	}
}

// clampCursor keeps the cursor on a record row after the row list
// shrinks or changes shape.
func (m *Model) clampCursor() {
	if len(m.rows) == 0 {
		m.cursor = 0
		m.offset = 0
		return
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.rows[m.cursor].record == nil {
		for i := m.cursor; i < len(m.rows); i++ {
			if m.rows[i].record != nil {
				m.cursor = i
				m.scrollToCursor()
				return
			}
		}
		for i := m.cursor; i >= 0; i-- {
			if m.rows[i].record != nil {
				m.cursor = i
				break
			}
		}
	}
	m.scrollToCursor()
}

func (m *Model) scrollToCursor() {
	h := m.listHeight()
	if h <= 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) listHeight() int {
	return m.height - 4 // top bar, search line, status, bottom bar
}
