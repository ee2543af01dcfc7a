package ui

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"serial-app/internal/capture"
	"serial-app/internal/config"
	"serial-app/internal/format"
	"serial-app/internal/logger"
	"serial-app/internal/ports"
	"serial-app/internal/session"
)

const themePreferenceKey = "theme"

var themeOptions = []string{"System", "Light", "Dark"}

// AppUI holds all UI state and widgets.
type AppUI struct {
	app       fyne.App
	window    fyne.Window
	manager   *session.Manager
	ports     ports.Source
	formatter *format.Formatter
	log       zerolog.Logger
	maxLines  int

	// Widgets
	portSelect     *widget.Select
	refreshBtn     *widget.Button
	baudSelect     *widget.Select
	dataBitsSelect *widget.Select
	paritySelect   *widget.Select
	stopBitsSelect *widget.Select
	openBtn        *widget.Button
	listenBtn      *widget.Button
	hexChk         *widget.Check
	binChk         *widget.Check
	utfChk         *widget.Check
	txRadio        *widget.RadioGroup
	command        *widget.Entry
	sendBtn        *widget.Button
	clearBtn       *widget.Button
	exportBtn      *widget.Button
	themeSelect    *widget.Select
	status         *widget.Label
	output         *widget.List

	// State
	mu        sync.Mutex
	sess      *session.Session
	feed      *feed
	portNames map[string]string
	frames    []session.Frame
	logLines  []string
	flags     format.Flags
	listening bool
}

// New builds the window content around manager.
func New(a fyne.App, w fyne.Window, manager *session.Manager, settings config.Settings, log zerolog.Logger) *AppUI {
	ui := &AppUI{
		app:       a,
		window:    w,
		manager:   manager,
		ports:     ports.System,
		formatter: format.NewFormatter(language.AmericanEnglish),
		log:       logger.Component(log, "ui"),
		maxLines:  settings.MaxLogLines,
		flags:     format.Hex,
	}
	ui.build(settings)
	return ui
}

func (ui *AppUI) build(settings config.Settings) {
	// Port settings
	ui.portSelect = widget.NewSelect([]string{}, nil)
	ui.portSelect.PlaceHolder = "Select a port..."
	ui.refreshBtn = widget.NewButton("Refresh", func() {
		ui.refreshPorts()
	})
	ui.refreshPorts()

	ui.baudSelect = widget.NewSelect(baudOptions(), nil)
	ui.baudSelect.SetSelected(strconv.Itoa(settings.DefaultBaudRate))
	if ui.baudSelect.Selected == "" {
		ui.baudSelect.SetSelected("9600")
	}
	ui.dataBitsSelect = widget.NewSelect(dataBitsOptions, nil)
	ui.dataBitsSelect.SetSelected("8")
	ui.paritySelect = widget.NewSelect(parityOptions, nil)
	ui.paritySelect.SetSelected("None")
	ui.stopBitsSelect = widget.NewSelect(stopBitsOptions, nil)
	ui.stopBitsSelect.SetSelected("1")

	ui.openBtn = widget.NewButton("Open Port", func() {
		ui.togglePort()
	})
	ui.listenBtn = widget.NewButton("Start Listener", func() {
		ui.toggleListener()
	})

	// Receive formats
	ui.hexChk = widget.NewCheck("HEX", func(checked bool) { ui.setFlag(format.Hex, checked) })
	ui.binChk = widget.NewCheck("BIN", func(checked bool) { ui.setFlag(format.Binary, checked) })
	ui.utfChk = widget.NewCheck("UTF-8", func(checked bool) { ui.setFlag(format.UTF, checked) })
	ui.hexChk.SetChecked(true)

	// Transmit
	ui.txRadio = widget.NewRadioGroup([]string{"UTF-8", "HEX"}, nil)
	ui.txRadio.Horizontal = true
	ui.txRadio.SetSelected("UTF-8")
	ui.command = widget.NewEntry()
	ui.command.SetPlaceHolder("Enter command...")
	ui.command.OnSubmitted = func(string) { ui.send() }
	ui.sendBtn = widget.NewButton("Send", func() {
		ui.send()
	})

	ui.clearBtn = widget.NewButton("Clear", func() {
		ui.mu.Lock()
		ui.frames = nil
		ui.logLines = nil
		ui.mu.Unlock()
		ui.output.Refresh()
	})
	ui.exportBtn = widget.NewButton("Export CSV", func() {
		ui.showExportDialog()
	})

	ui.themeSelect = widget.NewSelect(themeOptions, func(name string) {
		ui.app.Settings().SetTheme(themeFor(name))
		ui.app.Preferences().SetString(themePreferenceKey, name)
	})
	ui.themeSelect.SetSelected(ui.app.Preferences().StringWithFallback(themePreferenceKey, "System"))

	ui.status = widget.NewLabel("")
	ui.updateStatus()

	// Log list: copy the text outside the lock to avoid deadlock with Fyne's
	// internal re-entrant calls.
	ui.output = widget.NewList(
		func() int {
			ui.mu.Lock()
			defer ui.mu.Unlock()
			return len(ui.logLines)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.TextStyle = fyne.TextStyle{Monospace: true}
			return label
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ui.mu.Lock()
			var text string
			if id < len(ui.logLines) {
				text = ui.logLines[id]
			}
			ui.mu.Unlock()
			obj.(*widget.Label).SetText(text)
		},
	)

	// Layout
	portRow := container.NewHBox(
		widget.NewLabel("Port:"), ui.portSelect, ui.refreshBtn, ui.openBtn, ui.listenBtn,
	)
	modeRow := container.NewHBox(
		widget.NewLabel("Baud:"), ui.baudSelect,
		widget.NewLabel("Data bits:"), ui.dataBitsSelect,
		widget.NewLabel("Parity:"), ui.paritySelect,
		widget.NewLabel("Stop bits:"), ui.stopBitsSelect,
	)
	rxRow := container.NewHBox(
		widget.NewLabel("Receive as:"), ui.hexChk, ui.binChk, ui.utfChk,
		layout.NewSpacer(), ui.clearBtn, ui.exportBtn,
	)
	txRow := container.NewBorder(nil, nil,
		container.NewHBox(widget.NewLabel("Command type:"), ui.txRadio), ui.sendBtn, ui.command)
	bottom := container.NewVBox(
		txRow,
		container.NewHBox(widget.NewLabel("Theme:"), ui.themeSelect, layout.NewSpacer(), ui.status),
	)

	top := container.NewVBox(portRow, modeRow, rxRow)
	ui.window.SetContent(container.NewBorder(top, bottom, nil, nil, ui.output))
}

func (ui *AppUI) refreshPorts() {
	names, err := ui.ports.List()
	if err != nil {
		ui.log.Warn().Err(err).Msg("port enumeration failed")
	}
	details, err := ui.ports.Detailed()
	if err != nil {
		ui.log.Debug().Err(err).Msg("port details unavailable")
	}
	labels, byLabel := portChoices(names, details)
	ui.portNames = byLabel
	ui.portSelect.Options = labels
	if len(labels) > 0 {
		ui.portSelect.SetSelected(labels[0])
	} else {
		ui.portSelect.ClearSelected()
	}
	ui.portSelect.Refresh()
}

func (ui *AppUI) setFormEnabled(enabled bool) {
	for _, s := range []*widget.Select{ui.portSelect, ui.baudSelect, ui.dataBitsSelect, ui.paritySelect, ui.stopBitsSelect} {
		if enabled {
			s.Enable()
		} else {
			s.Disable()
		}
	}
	if enabled {
		ui.refreshBtn.Enable()
	} else {
		ui.refreshBtn.Disable()
	}
}

func (ui *AppUI) setClosedState() {
	ui.mu.Lock()
	ui.listening = false
	ui.mu.Unlock()
	ui.openBtn.SetText("Open Port")
	ui.listenBtn.SetText("Start Listener")
	ui.setFormEnabled(true)
	ui.updateStatus()
}

func (ui *AppUI) current() *session.Session {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	return ui.sess
}

func (ui *AppUI) togglePort() {
	if s := ui.current(); s != nil {
		ui.closeSession(s)
		return
	}

	cfg, err := buildConfig(portName(ui.portNames, ui.portSelect.Selected), ui.baudSelect.Selected,
		ui.dataBitsSelect.Selected, ui.paritySelect.Selected, ui.stopBitsSelect.Selected)
	if err != nil {
		ui.appendLog(err.Error())
		return
	}

	s, err := ui.manager.Open(cfg)
	if err != nil {
		ui.appendLog(fmt.Sprintf("Failed to open port '%s': %v", cfg.PortName, err))
		return
	}

	f := newFeed(s)
	ui.mu.Lock()
	ui.sess = s
	ui.feed = f
	ui.mu.Unlock()

	ui.appendLog(fmt.Sprintf("Successfully opened port '%s'", cfg.PortName))
	ui.openBtn.SetText("Close Port")
	ui.setFormEnabled(false)
	ui.updateStatus()

	go ui.consume(f)
}

func (ui *AppUI) closeSession(s *session.Session) {
	ui.mu.Lock()
	if ui.sess == s {
		ui.sess = nil
	}
	ui.mu.Unlock()

	if err := s.Close(); err != nil {
		ui.log.Error().Err(err).Str("port", s.Config().PortName).Msg("close failed")
		dialog.ShowError(fmt.Errorf("failed to close port: %w", err), ui.window)
	}
	ui.appendLog("Port closed")
	ui.setClosedState()
}

func (ui *AppUI) toggleListener() {
	s := ui.current()
	if s == nil {
		ui.appendLog("Port not open")
		return
	}

	ui.mu.Lock()
	ui.listening = !ui.listening
	listening := ui.listening
	f := ui.feed
	ui.mu.Unlock()

	if listening {
		ui.listenBtn.SetText("Stop Listener")
		ui.appendLog("Listener started")
		// Frames queued while stopped are rendered by consume.
		f.wake()
	} else {
		ui.listenBtn.SetText("Start Listener")
		ui.appendLog("Listener stopped")
	}
}

// consume renders frames while the session's reader runs. Frames stay in the
// session inbox while the listener is stopped.
func (ui *AppUI) consume(f *feed) {
	f.run(ui.drain)
	if s := f.sess; s.State() == session.StateFaulted {
		fyne.Do(func() { ui.onFault(s) })
	}
}

func (ui *AppUI) drain(s *session.Session) {
	ui.mu.Lock()
	if !ui.listening || ui.sess != s {
		ui.mu.Unlock()
		return
	}
	flags := ui.flags
	ui.mu.Unlock()

	var frames []session.Frame
	var lines []string
	for f := range s.PollInbound() {
		frames = append(frames, f)
		lines = append(lines, ui.formatter.Render(f, flags)...)
	}
	if len(frames) == 0 {
		fyne.Do(ui.updateStatus)
		return
	}

	ui.mu.Lock()
	ui.frames = appendBounded(ui.frames, ui.maxLines, frames...)
	ui.logLines = appendBounded(ui.logLines, ui.maxLines, lines...)
	ui.mu.Unlock()

	fyne.Do(func() {
		ui.output.Refresh()
		ui.output.ScrollToBottom()
		ui.updateStatus()
	})
}

func (ui *AppUI) onFault(s *session.Session) {
	ui.mu.Lock()
	owned := ui.sess == s
	if owned {
		ui.sess = nil
	}
	ui.mu.Unlock()
	if !owned {
		return
	}

	s.Close()
	ui.appendLog(fmt.Sprintf("Port '%s' faulted: %v", s.Config().PortName, s.Err()))
	ui.setClosedState()
	dialog.ShowError(fmt.Errorf("serial port error: %w", s.Err()), ui.window)
}

func (ui *AppUI) send() {
	s := ui.current()
	if s == nil {
		ui.appendLog("Port not open")
		return
	}

	enc := session.EncodingUTF
	if ui.txRadio.Selected == "HEX" {
		enc = session.EncodingHex
	}
	cmd := ui.command.Text
	req, err := format.ParseOutbound(cmd, enc)
	if err != nil {
		if errors.Is(err, format.ErrOddHexLength) || errors.Is(err, format.ErrInvalidHex) {
			ui.appendLog(fmt.Sprintf("Invalid hex string: %v", err))
			return
		}
		ui.appendLog(err.Error())
		return
	}

	go func() {
		err := s.Write(req)
		fyne.Do(func() {
			if err != nil {
				ui.appendLog(fmt.Sprintf("Error sending %s command: %v", enc, err))
				return
			}
			ui.appendLog(ui.formatter.Sent(len(req.Data), cmd))
			ui.updateStatus()
		})
	}()
}

func (ui *AppUI) setFlag(flag format.Flags, on bool) {
	ui.mu.Lock()
	ui.flags = ui.flags.With(flag, on)
	ui.mu.Unlock()
}

func (ui *AppUI) appendLog(line string) {
	ui.mu.Lock()
	ui.logLines = appendBounded(ui.logLines, ui.maxLines, line)
	ui.mu.Unlock()
	if ui.output != nil {
		ui.output.Refresh()
		ui.output.ScrollToBottom()
	}
}

func (ui *AppUI) updateStatus() {
	s := ui.current()
	if s == nil {
		ui.status.SetText("Closed")
		return
	}
	ui.status.SetText(fmt.Sprintf("%s | %s | RX %d B | TX %d B | dropped %d",
		s.Config(), s.State(), s.BytesRead(), s.BytesWritten(), s.Dropped()))
}

func (ui *AppUI) showExportDialog() {
	ui.mu.Lock()
	frameCount := len(ui.frames)
	ui.mu.Unlock()

	if frameCount == 0 {
		dialog.ShowInformation("Export", "No data to export.", ui.window)
		return
	}

	includeTimestamps := widget.NewCheck("Include timestamps", nil)
	filterByTime := widget.NewCheck("Filter by time range", nil)

	startEntry := widget.NewEntry()
	startEntry.SetPlaceHolder("Start (HH:MM:SS)")
	startEntry.Disable()
	endEntry := widget.NewEntry()
	endEntry.SetPlaceHolder("End (HH:MM:SS)")
	endEntry.Disable()

	filterByTime.OnChanged = func(checked bool) {
		if checked {
			startEntry.Enable()
			endEntry.Enable()
		} else {
			startEntry.Disable()
			endEntry.Disable()
		}
	}

	form := widget.NewForm(
		widget.NewFormItem("Timestamps", includeTimestamps),
		widget.NewFormItem("Time Filter", filterByTime),
		widget.NewFormItem("Start", startEntry),
		widget.NewFormItem("End", endEntry),
	)

	dialog.ShowCustomConfirm("Export CSV Options", "Export", "Cancel", form, func(confirmed bool) {
		if !confirmed {
			return
		}

		opts := capture.Options{
			IncludeTimestamps: includeTimestamps.Checked,
			FilterByTime:      filterByTime.Checked,
		}
		if filterByTime.Checked {
			now := time.Now()
			if text := strings.TrimSpace(startEntry.Text); text != "" {
				t, err := parseClock(text, now)
				if err != nil {
					dialog.ShowError(err, ui.window)
					return
				}
				opts.StartTime = t
			}
			opts.EndTime = now
			if text := strings.TrimSpace(endEntry.Text); text != "" {
				t, err := parseClock(text, now)
				if err != nil {
					dialog.ShowError(err, ui.window)
					return
				}
				opts.EndTime = t
			}
		}

		fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			writer.Close()
			opts.FilePath = localPath(writer.URI().Path())

			ui.mu.Lock()
			framesCopy := make([]session.Frame, len(ui.frames))
			copy(framesCopy, ui.frames)
			ui.mu.Unlock()

			if err := capture.Export(framesCopy, opts); err != nil {
				dialog.ShowError(err, ui.window)
				return
			}
			dialog.ShowInformation("Export", fmt.Sprintf("Exported %d frames to CSV.", len(framesCopy)), ui.window)
		}, ui.window)
		fd.SetFileName("serial_capture.csv")
		fd.Show()
	}, ui.window)
}

// Shutdown closes the open session, if any.
func (ui *AppUI) Shutdown() {
	s := ui.current()
	if s == nil {
		return
	}
	ui.mu.Lock()
	ui.sess = nil
	ui.mu.Unlock()
	if err := s.Close(); err != nil {
		ui.log.Error().Err(err).Msg("close on shutdown failed")
	}
}

// variantTheme pins the default theme to one variant.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t variantTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(name, t.variant)
}

func themeFor(name string) fyne.Theme {
	switch name {
	case "Light":
		return variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantLight}
	case "Dark":
		return variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantDark}
	}
	return theme.DefaultTheme()
}
