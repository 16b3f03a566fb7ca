package pintos

import (
	co "github.com/lunixbochs/trapgate/go/kernel/common"
	"github.com/lunixbochs/trapgate/go/models"
)

// Create syscall
func (k *Kernel) Create(name co.Str, size co.Len) (bool, error) {
	path, err := k.ReadString(uint64(name))
	if err != nil {
		return false, err
	}
	var ok bool
	k.sys.Gate.Run(func() {
		ok = k.sys.Fs.Create(path, int64(size))
	})
	return ok, nil
}

// Remove syscall
func (k *Kernel) Remove(name co.Str) (bool, error) {
	path, err := k.ReadString(uint64(name))
	if err != nil {
		return false, err
	}
	var ok bool
	k.sys.Gate.Run(func() {
		ok = k.sys.Fs.Remove(path)
	})
	return ok, nil
}

// Open syscall
func (k *Kernel) Open(name co.Str) (co.Fd, error) {
	path, err := k.ReadString(uint64(name))
	if err != nil {
		return -1, err
	}
	fd := co.Fd(-1)
	k.sys.Gate.Run(func() {
		if f, ok := k.sys.Fs.Open(path); ok {
			fd = k.Files.Allocate(f)
		}
	})
	return fd, nil
}

// Close syscall
func (k *Kernel) Close(fd co.Fd) {
	f, ok := k.Files.Lookup(fd)
	if !ok {
		return
	}
	k.sys.Gate.Run(f.Close)
	k.Files.Release(fd)
}

// Read syscall. A zero-length read never looks at buf.
func (k *Kernel) Read(fd co.Fd, buf co.Buf, size co.Len) (int, error) {
	if size == 0 {
		return 0, nil
	}
	if err := buf.Check(size); err != nil {
		return 0, err
	}
	var (
		f  models.File
		ok bool
		n  int
	)
	if fd != STDIN_FILENO {
		if f, ok = k.Files.Lookup(fd); !ok {
			return 0, nil
		}
	}
	tmp := make([]byte, size)
	if fd == STDIN_FILENO {
		for i := range tmp {
			tmp[i] = k.sys.Console.Getc()
		}
		n = len(tmp)
	} else {
		k.sys.Gate.Run(func() {
			n = f.Read(tmp)
		})
	}
	if err := buf.WriteFrom(tmp[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// Write syscall. The buffer is validated even when size is zero.
func (k *Kernel) Write(fd co.Fd, buf co.Buf, size co.Len) (int, error) {
	if err := buf.Check(size); err != nil {
		return 0, err
	}
	var (
		f  models.File
		ok bool
		n  int
	)
	if fd != STDOUT_FILENO {
		if f, ok = k.Files.Lookup(fd); !ok {
			return 0, nil
		}
	}
	tmp := make([]byte, size)
	if err := buf.ReadInto(tmp); err != nil {
		return 0, err
	}
	if fd == STDOUT_FILENO {
		k.sys.Console.Putbuf(tmp)
		return len(tmp), nil
	}
	k.sys.Gate.Run(func() {
		n = f.Write(tmp)
	})
	return n, nil
}

// Filesize syscall. Unknown handles return -1.
func (k *Kernel) Filesize(fd co.Fd) int {
	f, ok := k.Files.Lookup(fd)
	if !ok {
		return -1
	}
	var n int64
	k.sys.Gate.Run(func() {
		n = f.Length()
	})
	return int(n)
}

// Seek syscall
func (k *Kernel) Seek(fd co.Fd, pos co.Len) {
	f, ok := k.Files.Lookup(fd)
	if !ok {
		return
	}
	k.sys.Gate.Run(func() {
		f.SeekTo(int64(pos))
	})
}

// Tell syscall. Unknown handles return -1.
func (k *Kernel) Tell(fd co.Fd) int {
	f, ok := k.Files.Lookup(fd)
	if !ok {
		return -1
	}
	var n int64
	k.sys.Gate.Run(func() {
		n = f.Tell()
	})
	return int(n)
}
