package main

import "github.com/architeacher/adaptivebreaker/internal/runtime"

func main() {
	runtime.New().Run()
}
