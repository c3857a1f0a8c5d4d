// Package telemetry turns the CyBot's newline-delimited status lines into
// perception events and forwards them from a line source onto the event
// queue.
//
// The robot speaks a PREFIX:KEY=VALUE,KEY=VALUE format:
//
//	SCAN:ANGLE=90.00,DIST_CM=42.10,IR_RAW=812
//	SCAN: END SCAN
//	MOVE:DIST_CM=10.0,ANGLE_DEG=-15.0
//	BUMP_EVENT:LEFT
//	STATUS:BUMP_L=0,BUMP_R=1,CLIFF_L=0,...,PING=31.25,Heading=90
//	INFO:free text
//
// Firmware builds that report DIST_MM instead of DIST_CM are converted.
package telemetry
