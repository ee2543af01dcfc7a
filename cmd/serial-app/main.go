package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"serial-app/internal/config"
	"serial-app/internal/logger"
	"serial-app/internal/session"
	"serial-app/internal/ui"
)

func main() {
	settings, err := config.Load()
	log := logger.NewConsole(logger.ParseLevel(settings.LogLevel))
	if err != nil {
		log.Warn().Err(err).Msg("using default settings")
	}

	a := app.NewWithID("io.github.serial-app")
	w := a.NewWindow("Serial App")
	w.Resize(fyne.NewSize(800, 600))

	manager := session.NewManager(
		session.WithOptions(settings.SessionOptions()),
		session.WithLogger(log),
	)
	appUI := ui.New(a, w, manager, settings, log)
	w.SetCloseIntercept(func() {
		appUI.Shutdown()
		w.Close()
	})

	w.ShowAndRun()
}
