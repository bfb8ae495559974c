// nerobot — бот для direct-сообщений Mastodon.
//
// Команды:
//
//	nerobot serve    — слушает direct-стрим и отвечает на сообщения
//	nerobot history  — выгружает последние беседы в JSON lines
//
// Конфиг ищется флагом --config (или NEROBOT_CONFIG), рядом с бинарником
// и в текущей директории. MASTODON_SERVER и MASTODON_ACCESS_TOKEN
// переопределяют значения из файла.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
