package fdfs

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdfsgo/fdfs-client/internal/wire"
)

// fakeFDFS is a minimal in-process stand-in for a FastDFS tracker+storage
// pair: it speaks just enough of the wire protocol to drive the client
// through end-to-end upload/download/mutate scenarios without a real
// cluster. One listener plays both tracker and storage roles, always
// routing back to itself - acceptable since the client only cares about the
// (ip, port) a tracker query returns, not that it differs from the tracker
// it asked.
type fakeFDFS struct {
	mu       sync.Mutex
	ln       net.Listener
	host     string
	port     int
	seq      int
	files    map[string][]byte
	kinds    map[string]wire.FileKind
	meta     map[string]map[string]string
	refusing bool // when true, every accepted connection is closed unread (for failover tests)
}

func startFakeFDFS(t *testing.T) *fakeFDFS {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	f := &fakeFDFS{
		ln:    ln,
		host:  host,
		port:  port,
		files: make(map[string][]byte),
		kinds: make(map[string]wire.FileKind),
		meta:  make(map[string]map[string]string),
	}
	go f.serve(t)
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeFDFS) addr() string { return f.ln.Addr().String() }

func (f *fakeFDFS) serve(t *testing.T) {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		refusing := f.refusing
		f.mu.Unlock()
		if refusing {
			conn.Close()
			continue
		}
		go f.handle(t, conn)
	}
}

func (f *fakeFDFS) handle(t *testing.T, conn net.Conn) {
	defer conn.Close()
	for {
		headerBytes := make([]byte, wire.HeaderLen)
		if _, err := io.ReadFull(conn, headerBytes); err != nil {
			return
		}
		header, err := wire.DecodeHeader(headerBytes)
		if err != nil {
			return
		}
		body := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
		}
		if err := f.dispatch(conn, header.Cmd, body); err != nil {
			return
		}
	}
}

func (f *fakeFDFS) respond(conn net.Conn, status byte, body []byte) error {
	if _, err := conn.Write(wire.EncodeHeader(int64(len(body)), wire.RespCmd, status)); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := conn.Write(body); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFDFS) nextRemoteName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return "M00/test/" + strconv.Itoa(f.seq)
}

func (f *fakeFDFS) key(group, name string) string { return group + "/" + name }

func (f *fakeFDFS) dispatch(conn net.Conn, cmd byte, body []byte) error {
	switch cmd {
	case wire.CmdTrackerQueryStoreWithoutGroupOne, wire.CmdTrackerQueryStoreWithGroupOne:
		var resp []byte
		resp = append(resp, wire.PadString("group1", wire.GroupNameMaxLen)...)
		resp = append(resp, wire.PadString(f.host, wire.IPAddressSize)...)
		resp = append(resp, wire.EncodeInt64(int64(f.port))...)
		resp = append(resp, 0) // store_path_index
		return f.respond(conn, 0, resp)

	case wire.CmdTrackerQueryFetchOne, wire.CmdTrackerQueryUpdate:
		var resp []byte
		resp = append(resp, wire.PadString("group1", wire.GroupNameMaxLen)...)
		resp = append(resp, wire.PadString(f.host, wire.IPAddressSize)...)
		resp = append(resp, wire.EncodeInt64(int64(f.port))...)
		return f.respond(conn, 0, resp)

	case wire.CmdStorageUploadFile, wire.CmdStorageUploadAppenderFile:
		// [store_path_index:1][ext:6][data...]
		data := append([]byte(nil), body[1+wire.FileExtNameMaxLen:]...)
		name := f.nextRemoteName()
		f.mu.Lock()
		f.files[f.key("group1", name)] = data
		if cmd == wire.CmdStorageUploadAppenderFile {
			f.kinds[f.key("group1", name)] = wire.FileKindAppender
		}
		f.mu.Unlock()

		var resp []byte
		resp = append(resp, wire.PadString("group1", wire.GroupNameMaxLen)...)
		resp = append(resp, []byte(name)...)
		return f.respond(conn, 0, resp)

	case wire.CmdStorageUploadSlaveFile:
		masterLen := wire.DecodeInt64(body[0:8])
		dataLen := wire.DecodeInt64(body[8:16])
		offset := 16 + wire.FilePrefixMaxLen + wire.FileExtNameMaxLen
		masterFilename := string(body[offset : offset+int(masterLen)])
		data := append([]byte(nil), body[offset+int(masterLen):offset+int(masterLen)+int(dataLen)]...)
		_ = masterFilename

		name := f.nextRemoteName()
		f.mu.Lock()
		f.files[f.key("group1", name)] = data
		f.kinds[f.key("group1", name)] = wire.FileKindSlave
		f.mu.Unlock()

		var resp []byte
		resp = append(resp, wire.PadString("group1", wire.GroupNameMaxLen)...)
		resp = append(resp, []byte(name)...)
		return f.respond(conn, 0, resp)

	case wire.CmdStorageDownloadFile:
		offset := wire.DecodeInt64(body[0:8])
		length := wire.DecodeInt64(body[8:16])
		group := wire.UnpadString(body[16 : 16+wire.GroupNameMaxLen])
		name := string(body[16+wire.GroupNameMaxLen:])

		f.mu.Lock()
		data, ok := f.files[f.key(group, name)]
		f.mu.Unlock()
		if !ok {
			return f.respond(conn, 2, nil)
		}
		if offset > int64(len(data)) {
			offset = int64(len(data))
		}
		end := int64(len(data))
		if length > 0 && offset+length < end {
			end = offset + length
		}
		return f.respond(conn, 0, data[offset:end])

	case wire.CmdStorageDeleteFile:
		group := wire.UnpadString(body[0:wire.GroupNameMaxLen])
		name := string(body[wire.GroupNameMaxLen:])
		f.mu.Lock()
		_, ok := f.files[f.key(group, name)]
		if ok {
			delete(f.files, f.key(group, name))
		}
		f.mu.Unlock()
		if !ok {
			return f.respond(conn, 2, nil)
		}
		return f.respond(conn, 0, nil)

	case wire.CmdStorageSetMetadata:
		nameLen := wire.DecodeInt64(body[0:8])
		metaLen := wire.DecodeInt64(body[8:16])
		flag := wire.MetadataFlag(body[16])
		offset := 17
		group := wire.UnpadString(body[offset : offset+wire.GroupNameMaxLen])
		offset += wire.GroupNameMaxLen
		name := string(body[offset : offset+int(nameLen)])
		offset += int(nameLen)
		metaBytes := body[offset : offset+int(metaLen)]
		incoming := wire.DecodeMetadata(metaBytes)

		f.mu.Lock()
		k := f.key(group, name)
		if _, ok := f.files[k]; !ok {
			f.mu.Unlock()
			return f.respond(conn, 2, nil)
		}
		if flag == wire.MetadataOverwrite {
			f.meta[k] = incoming
		} else {
			existing := f.meta[k]
			if existing == nil {
				existing = make(map[string]string)
			}
			for kk, vv := range incoming {
				existing[kk] = vv
			}
			f.meta[k] = existing
		}
		f.mu.Unlock()
		return f.respond(conn, 0, nil)

	case wire.CmdStorageGetMetadata:
		group := wire.UnpadString(body[0:wire.GroupNameMaxLen])
		name := string(body[wire.GroupNameMaxLen:])
		f.mu.Lock()
		m := f.meta[f.key(group, name)]
		f.mu.Unlock()
		return f.respond(conn, 0, wire.EncodeMetadata(m))

	case wire.CmdStorageQueryFileInfo:
		group := wire.UnpadString(body[0:wire.GroupNameMaxLen])
		name := string(body[wire.GroupNameMaxLen:])
		f.mu.Lock()
		data, ok := f.files[f.key(group, name)]
		kind := f.kinds[f.key(group, name)]
		f.mu.Unlock()
		if !ok {
			return f.respond(conn, 2, nil)
		}
		var resp []byte
		resp = append(resp, wire.EncodeInt64(int64(len(data)))...)
		resp = append(resp, wire.EncodeInt64(time.Now().Unix())...)
		resp = append(resp, wire.EncodeInt32(0)...)
		resp = append(resp, wire.PadString(f.host, wire.IPAddressSize)...)
		resp = append(resp, byte(kind))
		return f.respond(conn, 0, resp)

	case wire.CmdStorageAppendFile:
		group := wire.UnpadString(body[0:wire.GroupNameMaxLen])
		rest := string(body[wire.GroupNameMaxLen:])
		f.mu.Lock()
		name, ok := f.longestKnownNamePrefix(group, rest)
		if !ok {
			f.mu.Unlock()
			return f.respond(conn, 2, nil)
		}
		data := []byte(rest[len(name):])
		f.files[f.key(group, name)] = append(f.files[f.key(group, name)], data...)
		f.mu.Unlock()
		return f.respond(conn, 0, nil)

	case wire.CmdStorageModifyFile:
		offset := wire.DecodeInt64(body[0:8])
		dataLen := wire.DecodeInt64(body[8:16])
		group := wire.UnpadString(body[16 : 16+wire.GroupNameMaxLen])
		rest := body[16+wire.GroupNameMaxLen:]
		name := string(rest[:len(rest)-int(dataLen)])
		data := rest[len(rest)-int(dataLen):]

		f.mu.Lock()
		existing := f.files[f.key(group, name)]
		if int(offset)+len(data) > len(existing) {
			grown := make([]byte, int(offset)+len(data))
			copy(grown, existing)
			existing = grown
		}
		copy(existing[offset:], data)
		f.files[f.key(group, name)] = existing
		f.mu.Unlock()
		return f.respond(conn, 0, nil)

	case wire.CmdStorageTruncateFile:
		nameLen := wire.DecodeInt64(body[0:8])
		size := wire.DecodeInt64(body[8:16])
		group := wire.UnpadString(body[16 : 16+wire.GroupNameMaxLen])
		name := string(body[16+wire.GroupNameMaxLen : 16+wire.GroupNameMaxLen+int(nameLen)])

		f.mu.Lock()
		existing := f.files[f.key(group, name)]
		if int(size) <= len(existing) {
			existing = existing[:size]
		} else {
			grown := make([]byte, size)
			copy(grown, existing)
			existing = grown
		}
		f.files[f.key(group, name)] = existing
		f.mu.Unlock()
		return f.respond(conn, 0, nil)

	default:
		return f.respond(conn, 22, nil)
	}
}

// longestKnownNamePrefix recovers the remote filename from an append
// request's group-stripped remainder. The wire protocol carries no
// filename-length prefix for append, so the split has to be recovered the
// way a real storage server can: by matching against filenames already
// known for the group, the longest match winning in case one known name
// prefixes another.
func (f *fakeFDFS) longestKnownNamePrefix(group, rest string) (string, bool) {
	best := ""
	for k := range f.files {
		g, name, found := strings.Cut(k, "/")
		if !found || g != group {
			continue
		}
		if strings.HasPrefix(rest, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func testClient(t *testing.T, f *fakeFDFS) *Client {
	t.Helper()
	c, err := NewClient(&ClientConfig{
		TrackerAddrs:   []string{f.addr()},
		MaxConns:       4,
		ConnectTimeout: 2 * time.Second,
		NetworkTimeout: 2 * time.Second,
		IdleTimeout:    time.Minute,
		EnablePool:     true,
		RetryCount:     1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUploadDownloadDeleteRoundTrip(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	fid, err := c.UploadBuffer(ctx, []byte("Hello, FastDFS!"), "txt", map[string]string{"author": "alice"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fid, "group1/"))

	data, err := c.DownloadFile(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "Hello, FastDFS!", string(data))

	require.NoError(t, c.DeleteFile(ctx, fid))

	_, err = c.DownloadFile(ctx, fid)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestMetadataMergeThenOverwrite(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	fid, err := c.UploadBuffer(ctx, []byte("x"), "bin", map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)

	require.NoError(t, c.SetMetadata(ctx, fid, map[string]string{"b": "22", "c": "3"}, MetadataMerge))
	m, err := c.GetMetadata(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "22", "c": "3"}, m)

	require.NoError(t, c.SetMetadata(ctx, fid, map[string]string{"x": "9"}, MetadataOverwrite))
	m, err = c.GetMetadata(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "9"}, m)
}

func TestRangeDownload(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = byte(i % 256)
	}
	fid, err := c.UploadBuffer(ctx, buf, "bin", nil)
	require.NoError(t, err)

	part, err := c.DownloadFileRange(ctx, fid, 100, 50)
	require.NoError(t, err)
	require.Len(t, part, 50)
	for i, b := range part {
		assert.Equal(t, byte((100+i)%256), b)
	}
}

func TestFileExists(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	fid, err := c.UploadBuffer(ctx, []byte("x"), "txt", nil)
	require.NoError(t, err)

	exists, err := c.FileExists(ctx, fid)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.DeleteFile(ctx, fid))

	exists, err = c.FileExists(ctx, fid)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAppenderLifecycle(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	fid, err := c.UploadAppenderBuffer(ctx, []byte("abc"), "txt", nil)
	require.NoError(t, err)

	info, err := c.GetFileInfo(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, FileKindAppender, info.Kind)
	assert.Equal(t, int64(3), info.FileSize)

	require.NoError(t, c.AppendFile(ctx, fid, []byte("def")))
	data, err := c.DownloadFile(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	require.NoError(t, c.ModifyFile(ctx, fid, 1, []byte("XY")))
	data, err = c.DownloadFile(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "aXYdef", string(data))

	require.NoError(t, c.TruncateFile(ctx, fid, 3))
	data, err = c.DownloadFile(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "aXY", string(data))
}

func TestNegativeOffsetsRejected(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	fid, err := c.UploadAppenderBuffer(ctx, []byte("abc"), "txt", nil)
	require.NoError(t, err)

	_, err = c.DownloadFileRange(ctx, fid, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = c.ModifyFile(ctx, fid, -1, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = c.TruncateFile(ctx, fid, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSlaveFileSurvivesMasterDeletion(t *testing.T) {
	f := startFakeFDFS(t)
	c := testClient(t, f)
	ctx := context.Background()

	master, err := c.UploadBuffer(ctx, []byte("original"), "jpg", nil)
	require.NoError(t, err)

	slave, err := c.UploadSlaveFile(ctx, master, "_thumb", "jpg", []byte("thumb"), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(slave, "group1/"))

	require.NoError(t, c.DeleteFile(ctx, master))

	data, err := c.DownloadFile(ctx, slave)
	require.NoError(t, err)
	assert.Equal(t, "thumb", string(data))
}

// TestTrackerFailover: with one dead tracker ahead of a live one in
// TrackerAddrs, an operation still succeeds because nextTrackerAddr
// round-robins and withRetry tries again.
func TestTrackerFailover(t *testing.T) {
	bad := startFakeFDFS(t)
	bad.mu.Lock()
	bad.refusing = true
	bad.mu.Unlock()
	good := startFakeFDFS(t)

	c, err := NewClient(&ClientConfig{
		TrackerAddrs:   []string{bad.addr(), good.addr()},
		MaxConns:       4,
		ConnectTimeout: 2 * time.Second,
		NetworkTimeout: 2 * time.Second,
		IdleTimeout:    time.Minute,
		EnablePool:     true,
		RetryCount:     1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	fid, err := c.UploadBuffer(ctx, []byte("failover"), "txt", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fid, "group1/"))

	data, err := c.DownloadFile(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "failover", string(data))
}
