// Package domain contains the core entities of the messenger: registered
// users and the messages they exchange. These types are free of storage and
// presentation concerns so they can be shared across packages.
package domain
