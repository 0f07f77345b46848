//go:build windows

package main

import (
	"github.com/Microsoft/go-winio/pkg/etwlogrus"
	"github.com/sirupsen/logrus"
)

const etwProvider = "AppStract.VfsDiag"

func addPlatformHooks() {
	// Hook isn't closed explicitly, as it will exist until process exit.
	if hook, err := etwlogrus.NewHook(etwProvider); err == nil {
		logrus.AddHook(hook)
	} else {
		logrus.WithError(err).Debug("event tracing for windows is unavailable")
	}
}
