package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"lifelog/internal/config"
	"lifelog/internal/models"
)

func newTodoCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "List and complete todos",
	}
	cmd.AddCommand(newTodoListCmd(cfg, opts), newTodoDoneCmd(cfg, opts))
	return cmd
}

func newTodoListCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending todos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var todos []models.Todo
			if all {
				todos, err = a.media.Todos.List(ctx, nil)
				sort.Slice(todos, func(i, j int) bool {
					if !todos[i].Created.Equal(todos[j].Created) {
						return todos[i].Created.Before(todos[j].Created)
					}
					return todos[i].Key < todos[j].Key
				})
			} else {
				todos, err = a.media.PendingTodos(ctx)
			}
			if err != nil {
				return err
			}
			if todos == nil {
				todos = []models.Todo{}
			}

			if opts.structured() {
				return writeStructured(todos)
			}
			return writeTodoList(todos)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include completed todos")
	return cmd
}

func newTodoDoneCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <key>",
		Short: "Mark a todo as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			todo, ok, err := a.media.Todos.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("todo %q not found", args[0])
			}
			todo.Done = true
			if _, err := a.media.Todos.Put(ctx, todo.Key, todo); err != nil {
				return err
			}

			if opts.structured() {
				return writeStructured(todo)
			}
			return writePlain("%s\n", formatTodoLine(todo))
		},
	}
}
