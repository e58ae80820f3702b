package services

import (
	"bytes"
	"io"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
)

type readCloser struct {
	io.Reader
	io.Closer
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func closeBody(resp *asset.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
