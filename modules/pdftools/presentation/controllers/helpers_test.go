package controllers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

type brokenStore struct{}

func (brokenStore) Put(context.Context, types.Artifact, []byte) error {
	return errors.New("connection refused")
}

func (brokenStore) Get(context.Context, string) (types.Artifact, []byte, error) {
	return types.Artifact{}, nil, errors.New("connection refused")
}

func itoa(n int) string { return strconv.Itoa(n) }
