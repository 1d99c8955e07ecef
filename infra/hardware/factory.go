package hardware

import (
	"github.com/kilianp07/rainbarrel/core/factory"
	corehw "github.com/kilianp07/rainbarrel/core/hardware"
	"github.com/kilianp07/rainbarrel/infra/logger"
)

// Board types accepted by NewBoard.
const (
	TypeGPIO = "gpio"
	TypeSim  = "sim"
)

var boards = factory.NewRegistry[corehw.Board]()

func init() {
	_ = boards.Register(TypeGPIO, func(conf map[string]any) (corehw.Board, error) {
		var c GPIOConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		b, err := NewGPIOBoard(c, logger.New("gpio"))
		if err != nil {
			return nil, err
		}
		return b, nil
	})
	_ = boards.Register(TypeSim, func(conf map[string]any) (corehw.Board, error) {
		var c SimConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSimBoard(c, nil, logger.New("sim-board")), nil
	})
}

// Register adds a board implementation.
func Register(name string, f factory.Factory[corehw.Board]) error {
	return boards.Register(name, f)
}

// NewBoard builds the board described by cfg.
func NewBoard(cfg factory.ModuleConfig) (corehw.Board, error) {
	return boards.Create(cfg)
}

// Types lists the registered board types.
func Types() []string { return boards.Names() }
