// Package logx is sendsim's thin structured-logging layer over zerolog.
//
// Components hold a logx.Logger value and attach typed fields per event;
// the owning Service can swap level and sinks at runtime (console stays
// human-readable, the optional file sink stays JSON).
package logx
