package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/okian/pacer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a json logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat("json"), logger.WithWriter(&buf)), ShouldBeNil)
		defer func() { So(logger.Sync(), ShouldBeNil) }()

		Convey("When logging through a named logger", func() {
			logger.Named("policy").Info(ctx, "decided", logger.Int("candidates", 5))

			Convey("Then the entry is grouped under the name with its source", func() {
				var entry map[string]any
				So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
				So(entry["msg"], ShouldEqual, "decided")
				group, ok := entry["policy"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(group["candidates"], ShouldEqual, 5.0)
				So(group["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised", func() {
			So(logger.SetLevelString("warn"), ShouldBeNil)
			logger.Get().Info(ctx, "hidden")
			logger.Get().Warn(ctx, "shown")

			Convey("Then lower entries are dropped", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})
	})

	Convey("Given a text logger", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf)), ShouldBeNil)
		logger.Get().Debug(ctx, "quiet")
		logger.Get().Error(ctx, "failed", logger.String("k", "v"))

		Convey("Then it writes key=value lines at info level", func() {
			So(buf.String(), ShouldNotContainSubstring, "quiet")
			So(strings.Contains(buf.String(), "k=v"), ShouldBeTrue)
		})
	})

	Convey("Given unknown settings", t, func() {
		Convey("Then init and level parsing fail", func() {
			So(logger.Init(logger.WithFormat("xml")), ShouldNotBeNil)
			So(logger.SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given the nop logger", t, func() {
		l := logger.Nop()

		Convey("Then every call is safe and naming keeps it silent", func() {
			So(func() {
				l.Named("x").Info(context.Background(), "nothing", logger.Bool("ok", true))
				l.Fatal(context.Background(), "still nothing")
			}, ShouldNotPanic)
		})
	})
}
