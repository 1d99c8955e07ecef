// Package hardware provides the barrel board drivers: a GPIO board driven
// through periph.io (solenoid valve, optional solenoid power line and an
// HC-SR04 ultrasonic ranging sensor) and a simulated board for running the
// agent without hardware. Boards are selected by type through NewBoard.
package hardware
