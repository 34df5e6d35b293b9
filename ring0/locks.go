package ring0

// Process-wide named locks for the shared buses multiple chip drivers
// contend over. The basenames are the Win32 global mutex names other vendor
// tools create (minus the "Global\" namespace prefix), kept verbatim as the
// flock(2) file basenames (see lockDir in mutex.go).
var (
	LockISABus = NewNamedMutex("Access_ISABUS.HTP.Method")
	LockPCIBus = NewNamedMutex("Access_PCI")
	LockSMBus  = NewNamedMutex("Access_SMBUS.HTP.Method")
	LockEC     = NewNamedMutex("Access_EC")
)
