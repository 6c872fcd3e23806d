package i18n

import "strings"

// The API speaks English by default; clients sending Accept-Language: ru
// get the Russian originals back.
var russian = map[string]string{
	"No chat name provided":                 "Название чата не указано",
	"Missing or invalid required fields":    "Отсутствуют обязательные поля",
	"No JSON data provided":                 "Данные JSON не переданы",
	"One or both users not found":           "Один или оба пользователя не найдены",
	"Not authorized to add users to this chat": "Нет прав добавлять пользователей в этот чат",
	"User is already in the chat":           "Пользователь уже в чате",
	"Missing required fields":               "Отсутствуют обязательные поля",
	"No message, chat_id, or login provided": "Не указано сообщение, chat_id или login",
	"Access denied":                         "Доступ запрещён",
	"No chat_id provided":                   "chat_id не указан",
	"No chat_id or user_id provided":        "chat_id или user_id не указан",
	"No user_id provided":                   "user_id не указан",
	"No login provided":                     "Логин не указан",
	"No login or password provided":         "Логин или пароль не указаны",
	"Invalid login or password":             "Неверный логин или пароль",
	"User not found":                        "Пользователь не найден",
	"No file part":                          "Файл не передан",
	"No selected file":                      "Файл не выбран",
	"File type not allowed":                 "Недопустимый тип файла",
	"Chat created":                          "Чат создан",
	"Chat already exists":                   "Чат уже существует",
	"Message received":                      "Сообщение получено",
	"Messages marked as read":               "Сообщения отмечены прочитанными",
	"User added to chat":                    "Пользователь добавлен в чат",
	"Login successful":                      "Вход выполнен",
	"Database error":                        "Ошибка базы данных",
	"Internal server error":                 "Внутренняя ошибка сервера",
	"Not found":                             "Не найдено",
}

// Translate returns message in the requested language, falling back to
// the message itself. lang is an Accept-Language value; only its primary
// tag is considered.
func Translate(lang, message string) string {
	if primaryTag(lang) != "ru" {
		return message
	}
	if translated, ok := russian[message]; ok {
		return translated
	}
	return message
}

func primaryTag(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	// "ru-RU,ru;q=0.9,en;q=0.8" -> "ru"
	for _, sep := range []string{",", ";", "-"} {
		if i := strings.Index(lang, sep); i >= 0 {
			lang = lang[:i]
		}
	}
	return strings.ToLower(lang)
}
