package pintos

import (
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/trapgate/go/models"
)

// System holds what every process kernel shares: the collaborators and the
// single filesystem gate.
type System struct {
	Config  *models.Config
	Gate    *models.Gate
	Fs      models.Filesys
	Console models.Console
	Power   models.Power
	// Procs is attached by the process table once it exists.
	Procs  models.ProcessControl
	Tracer models.Tracer
	Log    *logrus.Logger
}

func NewSystem(config *models.Config, fs models.Filesys, console models.Console, power models.Power) *System {
	return &System{
		Config:  config,
		Gate:    &models.Gate{},
		Fs:      fs,
		Console: console,
		Power:   power,
		Log:     logrus.StandardLogger(),
	}
}
