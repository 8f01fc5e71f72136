// Package terminal renders a running simulation in a text terminal with tcell.
//
// The grid is drawn one character per cell: flow arrows for road cells, ┼ for
// junctions (highlighted while held), █ for buildings. Cars are drawn as
// heading arrows coloured by state. Debug mode paints the network's debug
// views as background colours.
package terminal
