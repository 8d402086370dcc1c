// Package main 是交互式命令行客户端的入口点。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"axtro-go/internal/model"
	"axtro-go/pkg/apiclient"
	"axtro-go/pkg/dictation"
	"axtro-go/pkg/notify"
	"axtro-go/pkg/session"

	"github.com/fatih/color"
)

var (
	serverURL    = flag.String("server", "http://localhost:8080", "服务端地址")
	username     = flag.String("user", "", "用户名")
	password     = flag.String("pass", "", "密码")
	language     = flag.String("lang", "", "回复语言（透传给生成服务）")
	tone         = flag.String("tone", "", "回复语气（透传给生成服务）")
	dictationURL = flag.String("dictation", "", "语音转写网关地址 (ws://...)")
	alertPref    = flag.Bool("alerts", true, "新消息是否弹出被动提醒")
)

func main() {
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "必须指定 -user 与 -pass")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 处理中断信号
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\n再见。")
		cancel()
		os.Exit(0)
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	// 登录
	api := apiclient.New(*serverURL)
	if err := api.Login(ctx, *username, *password); err != nil {
		fmt.Fprintf(os.Stderr, "登录失败: %v\n", err)
		os.Exit(1)
	}

	var profile *model.AssistantProfile
	if *language != "" || *tone != "" {
		profile = &model.AssistantProfile{Language: *language, Tone: *tone}
	}

	// 会话与通知装配
	relay := notify.NewRelay(notify.DefaultTTL, nil)
	var sess *session.Session
	sess = session.New(api, session.Config{
		Profile: profile,
		OnNotice: func(n *session.Notice) {
			if n == nil {
				return
			}
			switch n.Kind {
			case session.NoticeCancelled:
				fmt.Println(yellow(n.Text))
			default:
				fmt.Println(red(n.Text))
			}
		},
		OnReply: func(chatID uint, reply model.Message) {
			if reply.IsImage {
				fmt.Printf("%s [imagen] %s\n", boldCyan("Axtro:"), reply.Content)
			} else {
				fmt.Printf("%s %s\n", boldCyan("Axtro:"), reply.Content)
			}
		},
		OnTurnCompleted: func(chatID uint) {
			// 终端始终可见，仅当回复属于未选中的对话时提醒
			selected := sess.Selected()
			viewedID := uint(0)
			if selected != nil {
				viewedID = selected.ID
			}
			if notify.ShouldNotify(*alertPref, viewedID, true, chatID) {
				relay.Publish(notify.Notification{
					ChatID: chatID,
					Title:  "Nuevo mensaje",
				})
				fmt.Println(yellow(fmt.Sprintf("[aviso] Nuevo mensaje en el chat %d (usa /abrir %d)", chatID, chatID)))
			}
		},
	})
	defer sess.Close()

	// 语音转写：话语以空格连接追加到待发送缓冲
	var pending strings.Builder
	dict := dictation.NewAdapter(*dictationURL, func(utterance string) {
		if pending.Len() > 0 {
			pending.WriteString(" ")
		}
		pending.WriteString(utterance)
		fmt.Printf("%s %s\n", yellow("[dictado]"), utterance)
	}, func(err error) {
		fmt.Println(red(fmt.Sprintf("Error de dictado: %v", err)))
	})
	defer dict.Close()

	// 初始加载对话列表，没有对话时创建一个
	if err := sess.RefreshChats(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "加载对话失败: %v\n", err)
		os.Exit(1)
	}
	if sess.Selected() == nil {
		if _, err := api.CreateChat(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "创建对话失败: %v\n", err)
			os.Exit(1)
		}
		_ = sess.RefreshChats(ctx)
	}

	fmt.Println(boldGreen("Axtro: chat interactivo"))
	fmt.Println("命令: /chats /nuevo /abrir <id> /imagen <prompt> /cancelar /dictar /salir")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("Tú: "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		// 合并语音输入缓冲
		if pending.Len() > 0 {
			if line != "" && !strings.HasPrefix(line, "/") {
				line = pending.String() + " " + line
			} else if line == "" {
				line = pending.String()
			}
			pending.Reset()
		}

		switch {
		case line == "":
			continue

		case line == "/salir":
			return

		case line == "/chats":
			for _, chat := range sess.Chats() {
				marker := "  "
				if sel := sess.Selected(); sel != nil && sel.ID == chat.ID {
					marker = "* "
				}
				fmt.Printf("%s[%d] %s (%d mensajes)\n", marker, chat.ID, chat.Name, len(chat.Messages))
			}

		case line == "/nuevo":
			if _, err := api.CreateChat(ctx); err != nil {
				fmt.Println(red(fmt.Sprintf("No se pudo crear el chat: %v", err)))
				continue
			}
			_ = sess.RefreshChats(ctx)

		case strings.HasPrefix(line, "/abrir "):
			id, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "/abrir ")), 10, 32)
			if err != nil || !sess.Select(uint(id)) {
				fmt.Println(red("Chat no encontrado"))
			}

		case line == "/cancelar":
			if sel := sess.Selected(); sel != nil {
				sess.Cancel(sel.ID)
			}

		case line == "/dictar":
			if err := dict.Toggle(ctx); err != nil {
				fmt.Println(red(fmt.Sprintf("%v", err)))
			} else if dict.State() == dictation.StateListening {
				fmt.Println(yellow("Escuchando... (usa /dictar para terminar)"))
			}

		case strings.HasPrefix(line, "/imagen "):
			prompt := strings.TrimPrefix(line, "/imagen ")
			if !sess.Submit(prompt, session.ModeImage, false) {
				fmt.Println(yellow("Hay un envío en curso para este chat."))
			}

		default:
			if !sess.Submit(line, session.ModeText, false) {
				fmt.Println(yellow("Hay un envío en curso para este chat."))
			}
		}
	}
}
