// Package broker bridges the daemon to an MQTT broker with the Eclipse Paho
// client. Intents go out as JSON on per-kind topics so dashboards and
// companion devices can show alerts; remote commands come in on a single
// command topic and are acknowledged.
package broker
