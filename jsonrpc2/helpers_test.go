package jsonrpc2

import (
	"context"
	"errors"
)

type FruitService struct{}

func (f *FruitService) Apple() string {
	return "Apple"
}

func (f *FruitService) Banana() error {
	return nil
}

func (f *FruitService) Cherry() (string, error) {
	return "Cherry", nil
}

func (f *FruitService) Durian() error {
	return errors.New("durian failure")
}

func (f *FruitService) Elderberry() error {
	return &ErrResponse{Code: -32005, Message: "limit exceeded"}
}

func (f *FruitService) Add(ctx context.Context, a int, b int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return a + b, nil
}

func (f *FruitService) Greet(name string, suffix *string) string {
	if suffix == nil {
		return "hello " + name
	}
	return "hello " + name + *suffix
}
