package storage

import (
	"context"
	"fmt"
	"os"
)

type FileRecipeState struct {
	FilePath string
}

func NewFileRecipeState(filePath string) *FileRecipeState {
	return &FileRecipeState{FilePath: filePath}
}

func (r *FileRecipeState) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(r.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read recipes file: %w", err)
	}
	return b, nil
}
