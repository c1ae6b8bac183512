// Package control defines the command vocabulary shared by the HTTP API and
// the MQTT bridge, and the Controller they both drive.
package control
