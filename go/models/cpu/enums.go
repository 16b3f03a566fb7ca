package cpu

// fault kinds reported by MemError
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_OUT_OF_RANGE   = 22
)

// these constants are used for memory protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)
