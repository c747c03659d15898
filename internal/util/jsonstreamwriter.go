package util

import (
	"encoding/json"
	"fmt"
	"github.com/charmbracelet/log"
	"io"
	"os"
	"sync"
)

type JsonStreamWriterItem struct {
	Key  string
	Data []byte
}

// JsonStreamWriter writes a single JSON object incrementally: each item
// becomes one "key": value member, flushed as it arrives, so a crash leaves
// every finished item on disk.
type JsonStreamWriter[I any] struct {
	Filepath      string
	input         chan JsonStreamWriterItem
	waiter        sync.WaitGroup
	out           io.WriteCloser
	lock          sync.Mutex
	isInitialized bool
	count         int
	convert       func(I) (string, any)
	logger        *log.Logger
}

func NewJsonStreamWriter[I any](filePath string, convert func(I) (string, any), logger *log.Logger) (*JsonStreamWriter[I], error) {
	fh, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	stream, err := NewJsonStream(fh, convert, logger)
	if err != nil {
		fh.Close()
		return nil, err
	}
	stream.Filepath = filePath
	return stream, nil
}

func NewJsonStream[I any](out io.WriteCloser, convert func(I) (string, any), logger *log.Logger) (*JsonStreamWriter[I], error) {
	if logger == nil {
		logger = log.Default()
	}

	stream := &JsonStreamWriter[I]{
		input:   make(chan JsonStreamWriterItem, 100),
		out:     out,
		convert: convert,
		logger:  logger,
	}

	if _, err := io.WriteString(stream.out, "{"); err != nil {
		return nil, err
	}

	stream.waiter.Add(1)
	go stream.writer()

	return stream, nil
}

func (stream *JsonStreamWriter[I]) writer() {
	defer stream.waiter.Done()

	for item := range stream.input {
		if err := stream.WriteItem(item.Key, item.Data); err != nil {
			stream.logger.Error("could not write item to json stream", "key", item.Key, "err", err)
		}
	}
}

func formatMember(key string, data []byte, initialized bool) (string, error) {
	encodedKey, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	if initialized {
		return fmt.Sprintf(",\n%s: %s", encodedKey, data), nil
	}
	return fmt.Sprintf("\n%s: %s", encodedKey, data), nil
}

func (stream *JsonStreamWriter[I]) WriteItem(key string, data []byte) error {
	stream.lock.Lock()
	defer stream.lock.Unlock()

	s, err := formatMember(key, data, stream.isInitialized)
	if err != nil {
		return err
	}

	if _, err = io.WriteString(stream.out, s); err != nil {
		return err
	}
	stream.isInitialized = true
	stream.count++

	if syncer, ok := stream.out.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}

func (stream *JsonStreamWriter[I]) WriteObject(obj I) {
	key, value := stream.convert(obj)
	data, err := json.Marshal(value)
	if err != nil {
		stream.logger.Warn("could not write item to json stream because encoding failed", "key", key, "err", err)
		return
	}
	stream.input <- JsonStreamWriterItem{Key: key, Data: data}
}

func (stream *JsonStreamWriter[I]) Count() int {
	stream.lock.Lock()
	defer stream.lock.Unlock()
	return stream.count
}

func (stream *JsonStreamWriter[I]) Close() {
	close(stream.input)
	stream.waiter.Wait()

	stream.lock.Lock()
	defer stream.lock.Unlock()

	if _, err := io.WriteString(stream.out, "\n}\n"); err != nil {
		stream.logger.Error("failed to write closing bracket", "err", err)
	}
	if err := stream.out.Close(); err != nil {
		stream.logger.Error("failed to close json stream", "err", err)
	}
}
